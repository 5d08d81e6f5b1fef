package venue

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

// Adapter is the sole owner of venue credentials and the sole caller of
// the venue. It exposes typed operations; every outgoing
// price/quantity is snapped to the instrument's grid before submission.
type Adapter struct {
	client *futures.Client

	mu          sync.Mutex
	instruments map[string]InstrumentInfo
}

// NewAdapter builds an Adapter over the Binance USD-M futures REST API.
// useTestnet switches the underlying SDK to the testnet host via the
// package-level futures.UseTestnet flag.
func NewAdapter(apiKey, apiSecret string, useTestnet bool) *Adapter {
	if useTestnet {
		futures.UseTestnet = true
		log.Println("⚠️ VENUE: using Binance Futures TESTNET host")
	}

	return &Adapter{
		client:      binance.NewFuturesClient(apiKey, apiSecret),
		instruments: make(map[string]InstrumentInfo),
	}
}

// NormalizeSymbol strips the optional ".P" perpetual marker. Idempotent:
// NormalizeSymbol(NormalizeSymbol(x)) == NormalizeSymbol(x).
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(symbol), ".P"))
}

// Initialize resolves instrument info and sets leverage + position mode
// for symbol. Fatal on any error except the "already set" semantic case,
// which withRetry/isSemanticSuccess already absorbs.
func (a *Adapter) Initialize(ctx context.Context, symbol string, leverage int, hedgeMode bool) error {
	symbol = NormalizeSymbol(symbol)

	if err := a.fetchInstrumentInfo(ctx, symbol); err != nil {
		return fmt.Errorf("fetch instrument info for %s: %w", symbol, err)
	}

	if err := a.SetPositionMode(ctx, hedgeMode); err != nil {
		return fmt.Errorf("set position mode: %w", err)
	}

	err := withRetry(ctx, "ChangeLeverage", func() error {
		_, e := a.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
		return e
	})
	if err != nil {
		return fmt.Errorf("set leverage to %dx for %s: %w", leverage, symbol, err)
	}

	log.Printf("✅ VENUE: initialized %s at %dx leverage (hedgeMode=%v)", symbol, leverage, hedgeMode)
	return nil
}

// fetchInstrumentInfo loads precision filters for every symbol and caches
// them; only the requested symbol's presence is required to succeed.
func (a *Adapter) fetchInstrumentInfo(ctx context.Context, symbol string) error {
	a.mu.Lock()
	if _, ok := a.instruments[symbol]; ok {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	info, err := a.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	found := false
	for _, s := range info.Symbols {
		qtyStep := decimal.Zero
		tickSize := decimal.Zero
		minQty := decimal.Zero
		maxQty := decimal.Zero

		for _, f := range s.Filters {
			switch f["filterType"] {
			case "PRICE_FILTER":
				tickSize = parseDecimal(f["tickSize"])
			case "LOT_SIZE":
				qtyStep = parseDecimal(f["stepSize"])
				minQty = parseDecimal(f["minQty"])
				maxQty = parseDecimal(f["maxQty"])
			}
		}

		a.instruments[s.Symbol] = InstrumentInfo{
			QtyStep:        qtyStep,
			MinQty:         minQty,
			MaxQty:         maxQty,
			QtyPrecision:   int32(s.QuantityPrecision),
			TickSize:       tickSize,
			PricePrecision: int32(s.PricePrecision),
		}

		if s.Symbol == symbol {
			found = true
		}
	}

	if !found {
		return fmt.Errorf("symbol %s not present in exchange info", symbol)
	}

	log.Printf("✅ VENUE: exchange info loaded, %d symbols cached", len(a.instruments))
	return nil
}

func parseDecimal(v interface{}) decimal.Decimal {
	s, ok := v.(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// InstrumentInfo returns the cached precision grid for symbol.
func (a *Adapter) InstrumentInfo(symbol string) (InstrumentInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	info, ok := a.instruments[NormalizeSymbol(symbol)]
	return info, ok
}

// SetPositionMode switches between one-way (hedge=false) and hedge mode.
// "No need to change position side" is translated to success.
func (a *Adapter) SetPositionMode(ctx context.Context, hedge bool) error {
	return withRetry(ctx, "SetPositionMode", func() error {
		return a.client.NewChangePositionModeService().DualSide(hedge).Do(ctx)
	})
}

// GetCurrentPosition returns the position snapshot for symbol/side, or nil
// if there is none (size == 0). Never cached across a mutation.
func (a *Adapter) GetCurrentPosition(ctx context.Context, symbol string, side PositionSide) (*Position, error) {
	symbol = NormalizeSymbol(symbol)
	var result *Position

	err := withRetry(ctx, "GetPositionRisk", func() error {
		risks, e := a.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
		if e != nil {
			return e
		}
		for _, r := range risks {
			if side != "" && side != PositionBoth && PositionSide(r.PositionSide) != side {
				continue
			}
			amt, _ := decimal.NewFromString(r.PositionAmt)
			if amt.IsZero() {
				continue
			}
			entry, _ := decimal.NewFromString(r.EntryPrice)
			pnl, _ := decimal.NewFromString(r.UnRealizedProfit)

			posSide := PositionLong
			if amt.IsNegative() {
				posSide = PositionShort
			}

			result = &Position{
				Side:          posSide,
				Size:          amt.Abs(),
				EntryPrice:    entry,
				UnrealizedPnL: pnl,
			}
			return nil
		}
		return nil
	})
	return result, err
}

// GetExactEntryPrice re-reads the venue position and returns its entry
// price. All PnL-derived price computations must use this, never the
// price that triggered the event.
func (a *Adapter) GetExactEntryPrice(ctx context.Context, symbol string, side PositionSide) (decimal.Decimal, bool, error) {
	pos, err := a.GetCurrentPosition(ctx, symbol, side)
	if err != nil {
		return decimal.Zero, false, err
	}
	if pos == nil {
		return decimal.Zero, false, nil
	}
	return pos.EntryPrice, true, nil
}

// GetOpenOrders lists resting orders for symbol.
func (a *Adapter) GetOpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	symbol = NormalizeSymbol(symbol)
	var out []OpenOrder

	err := withRetry(ctx, "ListOpenOrders", func() error {
		orders, e := a.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
		if e != nil {
			return e
		}
		out = make([]OpenOrder, 0, len(orders))
		for _, o := range orders {
			out = append(out, OpenOrder{
				OrderID:       strconv.FormatInt(o.OrderID, 10),
				ClientOrderID: o.ClientOrderID,
				Status:        string(o.Status),
				Type:          string(o.Type),
				Side:          string(o.Side),
				PositionSide:  string(o.PositionSide),
			})
		}
		return nil
	})
	return out, err
}

// OpenMarket rounds quantity to the instrument grid and submits a MARKET
// order in direction side, optionally tagged with a hedge-mode position side.
func (a *Adapter) OpenMarket(ctx context.Context, symbol string, side Side, quantity decimal.Decimal, positionSide PositionSide) error {
	symbol = NormalizeSymbol(symbol)
	info, ok := a.InstrumentInfo(symbol)
	if !ok {
		return fmt.Errorf("no instrument info cached for %s", symbol)
	}

	qty, err := RoundQuantity(quantity, info)
	if err != nil {
		return err
	}

	return withRetry(ctx, "OpenMarket", func() error {
		svc := a.client.NewCreateOrderService().
			Symbol(symbol).
			Side(futures.SideType(side)).
			Type(futures.OrderTypeMarket).
			Quantity(qty.String())

		if positionSide != "" {
			svc = svc.PositionSide(futures.PositionSideType(positionSide))
		}

		_, e := svc.Do(ctx)
		return e
	})
}

// PlaceStopMarketClose places a close-position STOP_MARKET that flattens
// 100% of positionSide on trigger, regardless of recorded size.
func (a *Adapter) PlaceStopMarketClose(ctx context.Context, symbol string, positionSide PositionSide, stopPrice decimal.Decimal) (string, error) {
	symbol = NormalizeSymbol(symbol)
	info, ok := a.InstrumentInfo(symbol)
	if !ok {
		return "", fmt.Errorf("no instrument info cached for %s", symbol)
	}
	price := RoundPrice(stopPrice, info)

	closeSide := futures.SideTypeSell
	if positionSide == PositionShort {
		closeSide = futures.SideTypeBuy
	}

	var orderID string
	err := withRetry(ctx, "PlaceStopMarketClose", func() error {
		res, e := a.client.NewCreateOrderService().
			Symbol(symbol).
			Side(closeSide).
			PositionSide(futures.PositionSideType(positionSide)).
			Type(futures.OrderType("STOP_MARKET")).
			StopPrice(price.String()).
			WorkingType(futures.WorkingTypeMarkPrice).
			PriceProtect(true).
			ClosePosition(true).
			Do(ctx)
		if e != nil {
			return e
		}
		orderID = strconv.FormatInt(res.OrderID, 10)
		return nil
	})
	return orderID, err
}

// PlaceStopLimitReduceOnly places a reduce-only STOP (stop-limit) order,
// used by the Stop variant's trailing-activation chain.
func (a *Adapter) PlaceStopLimitReduceOnly(ctx context.Context, symbol string, side Side, quantity, stopPrice, limitPrice decimal.Decimal) (string, error) {
	symbol = NormalizeSymbol(symbol)
	info, ok := a.InstrumentInfo(symbol)
	if !ok {
		return "", fmt.Errorf("no instrument info cached for %s", symbol)
	}

	qty, err := RoundQuantity(quantity, info)
	if err != nil {
		return "", err
	}
	stop := RoundPrice(stopPrice, info)
	limit := RoundPrice(limitPrice, info)

	var orderID string
	err = withRetry(ctx, "PlaceStopLimitReduceOnly", func() error {
		res, e := a.client.NewCreateOrderService().
			Symbol(symbol).
			Side(futures.SideType(side)).
			Type(futures.OrderType("STOP")).
			Quantity(qty.String()).
			StopPrice(stop.String()).
			Price(limit.String()).
			ReduceOnly(true).
			WorkingType(futures.WorkingTypeMarkPrice).
			TimeInForce(futures.TimeInForceType("GTE_GTC")).
			Do(ctx)
		if e != nil {
			return e
		}
		orderID = strconv.FormatInt(res.OrderID, 10)
		return nil
	})
	return orderID, err
}

// PlaceLimitReduceOnly places a reduce-only take-profit LIMIT order, used
// by the Take variant.
func (a *Adapter) PlaceLimitReduceOnly(ctx context.Context, symbol string, side Side, quantity, price decimal.Decimal) (string, error) {
	symbol = NormalizeSymbol(symbol)
	info, ok := a.InstrumentInfo(symbol)
	if !ok {
		return "", fmt.Errorf("no instrument info cached for %s", symbol)
	}

	qty, err := RoundQuantity(quantity, info)
	if err != nil {
		return "", err
	}
	p := RoundPrice(price, info)

	var orderID string
	err = withRetry(ctx, "PlaceLimitReduceOnly", func() error {
		res, e := a.client.NewCreateOrderService().
			Symbol(symbol).
			Side(futures.SideType(side)).
			Type(futures.OrderTypeLimit).
			Quantity(qty.String()).
			Price(p.String()).
			ReduceOnly(true).
			TimeInForce(futures.TimeInForceTypeGTC).
			Do(ctx)
		if e != nil {
			return e
		}
		orderID = strconv.FormatInt(res.OrderID, 10)
		return nil
	})
	return orderID, err
}

// CancelOrder cancels an order by id. Idempotent: cancelling an order
// that is already gone returns success.
func (a *Adapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	symbol = NormalizeSymbol(symbol)
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order id %q: %w", orderID, err)
	}

	return withRetry(ctx, "CancelOrder", func() error {
		_, e := a.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx)
		return e
	})
}

// CancelAllStops cancels resting protective stops for the symbol, used on
// shutdown. side selects which
// position's stops to cancel: PositionBoth cancels every stop regardless
// of side (one-way mode), PositionLong/PositionShort cancel only the stop
// resting against that hedge-mode leg.
func (a *Adapter) CancelAllStops(ctx context.Context, symbol string, side PositionSide) error {
	symbol = NormalizeSymbol(symbol)

	orders, err := a.GetOpenOrders(ctx, symbol)
	if err != nil {
		return err
	}

	for _, o := range orders {
		if !o.isStop() {
			continue
		}
		if side != "" && side != PositionBoth && PositionSide(o.PositionSide) != side {
			continue
		}
		if err := a.CancelOrder(ctx, symbol, o.OrderID); err != nil {
			return fmt.Errorf("cancel stop order %s: %w", o.OrderID, err)
		}
	}
	return nil
}

// CancelAllLimitOrders cancels every resting LIMIT order for symbol, used
// by the Take variant to clear stale scale-out take-profits before a
// reversal places fresh ones.
func (a *Adapter) CancelAllLimitOrders(ctx context.Context, symbol string) error {
	symbol = NormalizeSymbol(symbol)

	orders, err := a.GetOpenOrders(ctx, symbol)
	if err != nil {
		return err
	}

	for _, o := range orders {
		if !o.isLimit() {
			continue
		}
		if err := a.CancelOrder(ctx, symbol, o.OrderID); err != nil {
			return fmt.Errorf("cancel limit order %s: %w", o.OrderID, err)
		}
	}
	return nil
}

// LatestMarketPrice is a lightweight REST fallback for when no stream
// price is available yet (e.g. very early startup).
func (a *Adapter) LatestMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = NormalizeSymbol(symbol)
	var price decimal.Decimal

	err := withRetry(ctx, "ListPrices", func() error {
		prices, e := a.client.NewListPricesService().Symbol(symbol).Do(ctx)
		if e != nil {
			return e
		}
		if len(prices) == 0 {
			return fmt.Errorf("no price returned for %s", symbol)
		}
		p, e := decimal.NewFromString(prices[0].Price)
		if e != nil {
			return e
		}
		price = p
		return nil
	})
	return price, err
}

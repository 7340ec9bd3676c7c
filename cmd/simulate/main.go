package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/gateway"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/repository/callback"
	orderrepo "storefront/internal/repository/order"
	"storefront/internal/service/settlement"
)

const (
	simKeyID  = "rzp_test_simulator"
	simSecret = "simulator-secret"
)

type scenario struct {
	name string
	run  func(ctx context.Context, svc *settlement.Service, fake *gateway.Fake, gatewayOrderID string) error
}

func main() {
	var (
		deliveries int
		logLevel   string
	)
	flag.IntVar(&deliveries, "deliveries", 8, "concurrent deliveries of the same callback in the race scenario")
	flag.StringVar(&logLevel, "log-level", "warn", "service log level")
	flag.Parse()

	logger, err := logging.NewLogger("storefront-simulate", "sim", logLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	store := orderrepo.NewMemory()
	fake := gateway.NewFake(simKeyID, simSecret)
	svc, err := settlement.New(store, fake, settlement.Options{
		Secret:                 simSecret,
		Currency:               "INR",
		FailOnInvalidSignature: true,
		Ledger:                 callback.NewMemory(time.Hour),
		Metrics:                metrics.NewSettlement(nil),
		Logger:                 logger,
	})
	if err != nil {
		log.Fatalf("init settlement: %v", err)
	}

	scenarios := []scenario{
		{name: "valid callback", run: valid},
		{name: "replayed callback", run: replayed},
		{name: "tampered signature", run: tampered},
		{name: "tampered after paid", run: tamperedAfterPaid},
		{name: "concurrent deliveries", run: concurrent(deliveries)},
	}

	fmt.Printf("--- STARTING SIMULATION (%d SCENARIOS) ---\n", len(scenarios)+1)

	// The gateway is down for the first checkout: no intent, order stays pending.
	fake.FailNext(1)
	if _, err := svc.Checkout(ctx, demoCheckout()); err != nil {
		fmt.Printf("[0] gateway outage ... checkout FAILED: %v (retryable=%t)\n", err, errors.Is(err, domain.ErrGatewayUnavailable))
	}

	for i, sc := range scenarios {
		res, err := svc.Checkout(ctx, demoCheckout())
		if err != nil {
			fmt.Printf("[%d] %s ... checkout FAILED: %v\n", i+1, sc.name, err)
			continue
		}
		fmt.Printf("[%d] %s ... order %s, intent %s, amount %d %s\n",
			i+1, sc.name, res.OrderID, res.GatewayIntentID, res.AmountMinor, res.Currency)

		if err := sc.run(ctx, svc, fake, res.GatewayIntentID); err != nil {
			fmt.Printf("    -> scenario error: %v\n", err)
		}

		fresh, err := svc.GetOrder(ctx, res.OrderID)
		if err != nil {
			fmt.Printf("    -> reload failed: %v\n", err)
			continue
		}
		fmt.Printf("    -> Store Status: %s (paymentId=%s)\n", fresh.Status, deref(fresh.PaymentID))
		fmt.Println("---------------------------------------------------")
	}

	orders, err := store.List(ctx, orderrepo.ListFilter{Limit: 100})
	if err != nil {
		log.Fatalf("list orders: %v", err)
	}
	counts := map[domain.OrderStatus]int{}
	for _, o := range orders {
		counts[o.Status]++
	}
	fmt.Printf("--- SUMMARY: %d orders, pending=%d paid=%d failed=%d ---\n",
		len(orders), counts[domain.StatusPending], counts[domain.StatusPaid], counts[domain.StatusFailed])
}

func demoCheckout() settlement.CheckoutInput {
	return settlement.CheckoutInput{
		Items: []domain.CartItem{
			{ProductID: "demo-kurta", UnitPrice: decimal.NewFromInt(1000), Quantity: 2},
			{ProductID: "demo-mug", UnitPrice: decimal.NewFromInt(500), Quantity: 1},
		},
		Customer: domain.Customer{Name: "Asha Rao", Email: "asha@example.com", Phone: "+919800000000"},
	}
}

func valid(ctx context.Context, svc *settlement.Service, fake *gateway.Fake, gatewayOrderID string) error {
	cb, err := fake.Pay(gatewayOrderID)
	if err != nil {
		return err
	}
	return deliver(ctx, svc, cb, "callback")
}

func replayed(ctx context.Context, svc *settlement.Service, fake *gateway.Fake, gatewayOrderID string) error {
	cb, err := fake.Pay(gatewayOrderID)
	if err != nil {
		return err
	}
	if err := deliver(ctx, svc, cb, "first delivery"); err != nil {
		return err
	}
	return deliver(ctx, svc, cb, "replay")
}

func tampered(ctx context.Context, svc *settlement.Service, fake *gateway.Fake, gatewayOrderID string) error {
	cb, err := fake.Pay(gatewayOrderID)
	if err != nil {
		return err
	}
	cb.Signature = flipLast(cb.Signature)
	return deliver(ctx, svc, cb, "tampered")
}

func tamperedAfterPaid(ctx context.Context, svc *settlement.Service, fake *gateway.Fake, gatewayOrderID string) error {
	cb, err := fake.Pay(gatewayOrderID)
	if err != nil {
		return err
	}
	if err := deliver(ctx, svc, cb, "genuine"); err != nil {
		return err
	}
	cb.Signature = flipLast(cb.Signature)
	return deliver(ctx, svc, cb, "tampered")
}

func concurrent(n int) func(context.Context, *settlement.Service, *gateway.Fake, string) error {
	return func(ctx context.Context, svc *settlement.Service, fake *gateway.Fake, gatewayOrderID string) error {
		cb, err := fake.Pay(gatewayOrderID)
		if err != nil {
			return err
		}
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			settled int
			cleared int
			errs    []error
		)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := svc.HandleCallback(ctx, cb)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				if !res.AlreadySettled {
					settled++
				}
				if res.ClearCart {
					cleared++
				}
			}()
		}
		wg.Wait()
		fmt.Printf("    %d deliveries: settled=%d clearCart=%d errors=%d\n", n, settled, cleared, len(errs))
		return errors.Join(errs...)
	}
}

func deliver(ctx context.Context, svc *settlement.Service, cb domain.PaymentCallback, label string) error {
	res, err := svc.HandleCallback(ctx, cb)
	switch {
	case errors.Is(err, domain.ErrSignatureInvalid):
		fmt.Printf("    %s: rejected, signature invalid\n", label)
		return nil
	case err != nil:
		return fmt.Errorf("%s: %w", label, err)
	}
	fmt.Printf("    %s: verified=%t status=%s alreadySettled=%t clearCart=%t\n",
		label, res.Verified, res.Status, res.AlreadySettled, res.ClearCart)
	return nil
}

func flipLast(s string) string {
	if s == "" {
		return "0"
	}
	last := s[len(s)-1]
	repl := byte('0')
	if last == '0' {
		repl = '1'
	}
	return s[:len(s)-1] + string(repl)
}

func deref(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}

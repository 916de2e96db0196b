// Command endure-demo hosts a small set of demo services on top of the
// durable execution SDK. It needs a running Durable Engine reachable via
// DURABLE_ENGINE_BASE_URL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/endurehq/endure-go/endure"
	"github.com/endurehq/endure-go/pkg/config"
	"github.com/endurehq/endure-go/pkg/logger"
	"github.com/endurehq/endure-go/pkg/metrics"
)

// OrderItem is one line of an order.
type OrderItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

// OrderInput is the process_order workflow input.
type OrderInput struct {
	OrderID       string      `json:"order_id" validate:"required"`
	CustomerEmail string      `json:"customer_email" validate:"required,email"`
	TotalAmount   float64     `json:"total_amount" validate:"gte=0"`
	Items         []OrderItem `json:"items"`
}

// UserInput is the register_user workflow input.
type UserInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func validatePayment(_ context.Context, input any) (any, error) {
	return map[string]any{"status": "authorized", "details": input}, nil
}

func reserveInventory(_ context.Context, input any) (any, error) {
	return map[string]any{"status": "reserved", "item": input}, nil
}

func sendNotification(_ context.Context, input any) (any, error) {
	return map[string]any{"status": "sent", "notification": input}, nil
}

func createUser(_ context.Context, input any) (any, error) {
	return map[string]any{"status": "created", "user": input}, nil
}

func processOrder(ctx *endure.WorkflowContext, input OrderInput) (map[string]any, error) {
	reqCtx := ctx.Context()

	payment, err := ctx.ExecuteAction(reqCtx, validatePayment, map[string]any{
		"amount":         input.TotalAmount,
		"payment_method": "credit_card",
	}, 3, endure.RetryExponential)
	if err != nil {
		return nil, err
	}

	reservations := make([]any, 0, len(input.Items))
	for idx, item := range input.Items {
		reservation, err := ctx.ExecuteAction(reqCtx, reserveInventory, map[string]any{
			"item_id":  item.ID,
			"quantity": item.Quantity,
		}, 2, endure.RetryLinear, endure.WithActionName(fmt.Sprintf("reserve_inventory_%d", idx)))
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}

	notification, err := ctx.ExecuteAction(reqCtx, sendNotification, map[string]any{
		"recipient": input.CustomerEmail,
		"message":   fmt.Sprintf("Order %s confirmed", input.OrderID),
		"type":      "email",
	}, 2, endure.RetryConstant)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"order_id":     input.OrderID,
		"status":       "completed",
		"payment":      payment,
		"reservations": reservations,
		"notification": notification,
	}, nil
}

func registerUser(ctx *endure.WorkflowContext, input UserInput) (map[string]any, error) {
	reqCtx := ctx.Context()

	user, err := ctx.ExecuteAction(reqCtx, createUser, input, 2, endure.RetryExponential)
	if err != nil {
		return nil, err
	}
	notification, err := ctx.ExecuteAction(reqCtx, sendNotification, map[string]any{
		"recipient": input.Email,
		"message":   fmt.Sprintf("Welcome, %s!", input.Name),
		"type":      "email",
	}, 2, endure.RetryConstant)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": user, "notification": notification}, nil
}

func greet(_ *endure.WorkflowContext, input map[string]any) (string, error) {
	name, _ := input["name"].(string)
	if name == "" {
		return "", endure.NewValueError("input must include a name")
	}
	return fmt.Sprintf("Hello, %s!", name), nil
}

func registerServices() error {
	orders := endure.NewService("orders")
	if _, err := orders.Register(processOrder, endure.WithName("process_order"), endure.WithRetention(14)); err != nil {
		return err
	}
	users := endure.NewService("users")
	if _, err := users.Register(registerUser, endure.WithName("register_user")); err != nil {
		return err
	}
	greetings := endure.NewService("greetings")
	if _, err := greetings.Register(greet, endure.WithName("greet")); err != nil {
		return err
	}
	return nil
}

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	if strings.TrimSpace(cfg.Engine.BaseURL) == "" {
		log.Warn("DURABLE_ENGINE_BASE_URL is not set; workflow invocations will fail until it is")
	}

	if err := registerServices(); err != nil {
		log.Fatalf("register services: %v", err)
	}

	root := mux.NewRouter()
	root.Handle("/metrics", metrics.Handler())
	root.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.PathPrefix("/").Handler(endure.DefaultRegistry().Handler())

	listen := *addr
	if listen == "" {
		listen = cfg.Server.Address()
	}
	server := &http.Server{
		Addr:         listen,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Infof("endure demo listening on %s", listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	log.Info("endure demo stopped")
}

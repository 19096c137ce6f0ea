package cmd

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/controller"
	grpcserver "github.com/vibast-solutions/ms-go-messaging-webhooks/app/grpc"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/queue"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authservice "github.com/vibast-solutions/lib-go-auth/service"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) webhook receiver and the gRPC status service.",
	Run:   runServe,
}

// init registers the serve command.
func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires dependencies and starts HTTP and gRPC servers.
func runServe(_ *cobra.Command, _ []string) {
	deps := loadDependencies()
	defer deps.Close()
	cfg := deps.cfg

	internalAuth, authClient, err := buildInternalAuth(cfg)
	if err != nil {
		log.Fatalf("Failed to build internal auth: %v", err)
	}
	defer authClient.Close()

	producer := queue.NewWebhookProducer(deps.rdb)
	webhookController := controller.NewWebhookController(deps.webhookService, producer, cfg.WebhookAsync)
	statusServer := grpcserver.NewServer(deps.channelService, deps.reconciler, deps.logger)

	internalAuthMW := authmiddleware.NewEchoInternalAuthMiddleware(internalAuth)
	e := setupHTTPServer(webhookController, internalAuthMW, cfg.AppServiceName, deps.logger)
	grpcServer, lis := setupGRPCServer(cfg, statusServer, internalAuth)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
		deps.logger.Infof("Starting HTTP server on %s (async=%t)", httpAddr, cfg.WebhookAsync)
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	go func() {
		deps.logger.Infof("Starting gRPC server on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	deps.logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		deps.logger.WithError(err).Error("HTTP shutdown error")
	}
	grpcServer.GracefulStop()

	deps.logger.Info("Server stopped")
}

// setupHTTPServer configures the Echo HTTP server and routes. Provider
// webhooks authenticate with their channel tokens; internal routes require an
// X-API-Key granted access to appServiceName.
func setupHTTPServer(webhookController *controller.WebhookController, internalAuthMW *authmiddleware.EchoInternalAuthMiddleware, appServiceName string, logger logrus.FieldLogger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request failed")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())

	webhooks := e.Group("/webhooks")
	webhooks.POST("/zapi/:channel_id", webhookController.ZAPI)
	webhooks.POST("/baileys/:channel_id", webhookController.Baileys)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}, internalAuthMW.RequireInternalAccess(appServiceName))

	return e
}

// setupGRPCServer builds the gRPC server and listener.
func setupGRPCServer(cfg *config.Config, statusServer *grpcserver.Server, internalAuth *authservice.InternalAuthService) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPCHost, cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatalf("Failed to listen on gRPC port: %v", err)
	}

	return newGRPCServer(statusServer, internalAuth, cfg.AppServiceName), lis
}

// newGRPCServer registers the status service behind the internal access check.
func newGRPCServer(statusServer *grpcserver.Server, internalAuth *authservice.InternalAuthService, appServiceName string) *grpc.Server {
	grpcAuthMW := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuth)
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcAuthMW.UnaryRequireInternalAccess(appServiceName)),
	)
	grpcserver.RegisterStatusServiceServer(grpcServer, statusServer)
	return grpcServer
}

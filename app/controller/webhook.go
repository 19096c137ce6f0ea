package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/queue"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/reconciler"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/repository"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/service"
)

// Z-API sends the account security token in one of these headers.
const (
	headerClientToken = "Client-Token"
	headerZAPIToken   = "z-api-token"
)

type WebhookPublisher interface {
	Publish(ctx context.Context, msg queue.WebhookMessage) error
}

type WebhookController struct {
	webhookService *service.WebhookService
	producer       WebhookPublisher
	async          bool
}

// NewWebhookController constructs the HTTP webhook controller. When async is
// set, accepted webhooks are queued for the consumer instead of handled inline.
func NewWebhookController(webhookService *service.WebhookService, producer WebhookPublisher, async bool) *WebhookController {
	return &WebhookController{webhookService: webhookService, producer: producer, async: async}
}

// ZAPI receives Z-API callbacks for one channel.
func (c *WebhookController) ZAPI(ctx echo.Context) error {
	channelID, body, err := readWebhook(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	token := ctx.Request().Header.Get(headerClientToken)
	if token == "" {
		token = ctx.Request().Header.Get(headerZAPIToken)
	}
	reqCtx := requestContext(ctx)

	if c.async {
		if err := c.webhookService.PrecheckZAPI(reqCtx, channelID, token, body); err != nil {
			return writeError(ctx, err)
		}
		return c.enqueue(ctx, queue.WebhookMessage{
			RequestID: requestID(ctx),
			Provider:  entity.ProviderZAPI,
			ChannelID: channelID,
			Token:     token,
			Payload:   body,
		})
	}

	if err := c.webhookService.HandleZAPI(reqCtx, channelID, token, body); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "ok"})
}

// Baileys receives Baileys callbacks for one channel.
func (c *WebhookController) Baileys(ctx echo.Context) error {
	channelID, body, err := readWebhook(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	reqCtx := requestContext(ctx)

	if c.async {
		if err := c.webhookService.PrecheckBaileys(reqCtx, channelID, body); err != nil {
			return writeError(ctx, err)
		}
		return c.enqueue(ctx, queue.WebhookMessage{
			RequestID: requestID(ctx),
			Provider:  entity.ProviderBaileys,
			ChannelID: channelID,
			Payload:   body,
		})
	}

	if err := c.webhookService.HandleBaileys(reqCtx, channelID, body); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "ok"})
}

func (c *WebhookController) enqueue(ctx echo.Context, msg queue.WebhookMessage) error {
	if err := c.producer.Publish(ctx.Request().Context(), msg); err != nil {
		ctx.Logger().Errorf("failed to queue webhook: %v", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue webhook"})
	}
	return ctx.JSON(http.StatusAccepted, map[string]string{"message": "webhook accepted"})
}

func readWebhook(ctx echo.Context) (int64, []byte, error) {
	channelID, err := strconv.ParseInt(ctx.Param("channel_id"), 10, 64)
	if err != nil || channelID <= 0 {
		return 0, nil, errors.New("invalid channel_id")
	}
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return 0, nil, errors.New("invalid request body")
	}
	return channelID, body, nil
}

func requestID(ctx echo.Context) string {
	if id := ctx.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return ctx.Request().Header.Get(echo.HeaderXRequestID)
}

func requestContext(ctx echo.Context) context.Context {
	reqCtx := ctx.Request().Context()
	if id := requestID(ctx); id != "" {
		reqCtx = service.WithRequestID(reqCtx, id)
	}
	return reqCtx
}

func writeError(ctx echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidPayload), errors.Is(err, reconciler.ErrInvalidEvent):
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidClientToken), errors.Is(err, service.ErrInvalidWebhookVerifyToken):
		return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, repository.ErrChannelNotFound), errors.Is(err, service.ErrProviderMismatch):
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "channel not found"})
	case errors.Is(err, reconciler.ErrConflict):
		return ctx.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		ctx.Logger().Errorf("webhook processing failed: %v", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to process webhook"})
	}
}

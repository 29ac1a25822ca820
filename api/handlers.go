package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"auction-api/domain"
	"auction-api/service"
)

const (
	maxBodySize          = 16 << 10
	idempotencyKeyHeader = "Idempotency-Key"
)

// Register wires up all API routes on the provided Echo instance. deduper
// and stats may be nil.
func Register(e *echo.Echo, svc Auctions, deduper Deduper, stats func() OutboxStats, logger *log.Logger) {
	g := e.Group("/api", observe(logger), decompressRequest())
	g.POST("/items", postItem(svc))
	g.GET("/items", searchItems(svc))
	g.GET("/items/:id", getItem(svc))
	g.POST("/auctions", postAuction(svc))
	g.GET("/auctions", searchAuctions(svc))
	g.GET("/auctions/:id", getAuction(svc))
	g.POST("/auctions/:id/bids", postBid(svc, deduper, logger))
	g.POST("/auctions/:id/close", postClose(svc))
	g.GET("/outbox/stats", getOutboxStats(stats))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, healthResponse{Status: "ok", Time: time.Now().UTC()})
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func pathID(c echo.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	return id, err == nil
}

func postItem(svc Auctions) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createItemRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "decode", "invalid body")
		}
		category, err := domain.ParseCategory(req.Category)
		if err != nil {
			return fail(c, "validate", err)
		}
		item, err := domain.NewItem(domain.ItemParams{
			ID:            uuid.New(),
			Category:      category,
			Manufacturer:  req.Manufacturer,
			Model:         req.Model,
			Year:          req.Year,
			StartingPrice: req.StartingPrice,
			Doors:         req.Doors,
			Seats:         req.Seats,
			LoadCapacity:  req.LoadCapacity,
		})
		if err != nil {
			return fail(c, "validate", err)
		}
		if err := svc.AddItem(c.Request().Context(), item); err != nil {
			return fail(c, "store", err)
		}
		metricsFrom(c).Set(attribute.String("item.id", item.ID().String()))
		return c.JSON(http.StatusCreated, newItemResponse(item))
	}
}

func getItem(svc Auctions) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c, "invalid_id", "invalid item id")
		}
		item, err := svc.GetItem(c.Request().Context(), id)
		if err != nil {
			return fail(c, "store", err)
		}
		return c.JSON(http.StatusOK, newItemResponse(item))
	}
}

func searchItems(svc Auctions) echo.HandlerFunc {
	return func(c echo.Context) error {
		var f service.ItemFilter
		if raw := strings.TrimSpace(c.QueryParam("category")); raw != "" {
			category, err := domain.ParseCategory(raw)
			if err != nil {
				return fail(c, "invalid_filter", err)
			}
			f.Category = &category
		}
		f.Manufacturer = c.QueryParam("manufacturer")
		f.Model = c.QueryParam("model")
		if raw := strings.TrimSpace(c.QueryParam("year")); raw != "" {
			year, err := strconv.Atoi(raw)
			if err != nil {
				return badRequest(c, "invalid_filter", "invalid year")
			}
			f.Year = &year
		}
		items := svc.SearchItems(c.Request().Context(), f)
		resp := make([]itemResponse, 0, len(items))
		for _, it := range items {
			resp = append(resp, newItemResponse(it))
		}
		metricsFrom(c).Set(attribute.Int("items.returned", len(resp)))
		return c.JSON(http.StatusOK, resp)
	}
}

func postAuction(svc Auctions) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req openAuctionRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "decode", "invalid body")
		}
		id, err := svc.OpenAuction(c.Request().Context(), req.ItemID, req.StartingPrice)
		if err != nil {
			return fail(c, "open", err)
		}
		metricsFrom(c).Set(attribute.String("auction.id", id.String()))
		return c.JSON(http.StatusCreated, openAuctionResponse{AuctionID: id})
	}
}

func getAuction(svc Auctions) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c, "invalid_id", "invalid auction id")
		}
		snap, err := svc.GetAuction(c.Request().Context(), id)
		if err != nil {
			return fail(c, "store", err)
		}
		return c.JSON(http.StatusOK, snap)
	}
}

func searchAuctions(svc Auctions) echo.HandlerFunc {
	return func(c echo.Context) error {
		var f service.AuctionFilter
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			status, err := domain.ParseStatus(strings.ToLower(raw))
			if err != nil {
				return fail(c, "invalid_filter", err)
			}
			f.Status = &status
		}
		if raw := strings.TrimSpace(c.QueryParam("itemId")); raw != "" {
			itemID, err := uuid.Parse(raw)
			if err != nil {
				return badRequest(c, "invalid_filter", "invalid item id")
			}
			f.ItemID = &itemID
		}
		snaps := svc.SearchAuctions(c.Request().Context(), f)
		if snaps == nil {
			snaps = []domain.AuctionSnapshot{}
		}
		metricsFrom(c).Set(attribute.Int("auctions.returned", len(snaps)))
		return c.JSON(http.StatusOK, snaps)
	}
}

func postBid(svc Auctions, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id, ok := pathID(c)
		if !ok {
			return badRequest(c, "invalid_id", "invalid auction id")
		}
		var req placeBidRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "decode", "invalid body")
		}
		metrics := metricsFrom(c)
		metrics.Set(attribute.String("auction.id", id.String()), attribute.String("bid.amount", req.Amount.String()))

		key := strings.TrimSpace(c.Request().Header.Get(idempotencyKeyHeader))
		if deduper != nil && key != "" && req.BidderID != uuid.Nil {
			added, err := deduper.Add(ctx, req.BidderID.String(), key)
			if err != nil {
				logger.WithError(err).WithField("auction", id).Error("idempotency check failed")
				metrics.SetErrorStage("dedupe")
				return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "idempotency store unavailable"})
			}
			if !added {
				metrics.SetErrorStage("duplicate")
				return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate bid request"})
			}
		}

		price, err := svc.PlaceBid(ctx, id, req.Amount, req.BidderID)
		if err != nil {
			if deduper != nil && key != "" && req.BidderID != uuid.Nil {
				if rerr := deduper.Remove(ctx, req.BidderID.String(), key); rerr != nil {
					logger.WithError(rerr).WithField("auction", id).Warn("failed to release idempotency key")
				}
			}
			return fail(c, "bid", err)
		}
		return c.JSON(http.StatusOK, placeBidResponse{AuctionID: id, WinningPrice: price})
	}
}

func postClose(svc Auctions) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c, "invalid_id", "invalid auction id")
		}
		snap, err := svc.CloseAuction(c.Request().Context(), id)
		if err != nil {
			return fail(c, "close", err)
		}
		return c.JSON(http.StatusOK, snap)
	}
}

func getOutboxStats(stats func() OutboxStats) echo.HandlerFunc {
	return func(c echo.Context) error {
		if stats == nil {
			return c.JSON(http.StatusOK, OutboxStats{})
		}
		return c.JSON(http.StatusOK, stats())
	}
}

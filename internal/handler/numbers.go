package handler

import (
    "errors"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/raffle-number-reservation/internal/model"
    "github.com/iliyamo/raffle-number-reservation/internal/notify"
    "github.com/iliyamo/raffle-number-reservation/internal/repository"
    "github.com/iliyamo/raffle-number-reservation/internal/service"
)

// keepAliveInterval is how often the SSE stream sends a comment frame so
// proxies do not drop an idle admin connection.
const keepAliveInterval = 15 * time.Second

// NumbersHandler exposes the raffle API.  It translates HTTP requests into
// reservation engine calls and engine errors back into the response shapes
// the frontend expects: {message} for 4xx, {error} for 5xx.
type NumbersHandler struct {
    Engine   *service.ReservationEngine // reservation lifecycle operations
    Broker   *notify.Broker             // live event feed for the admin stream
    PoolSize int                        // how many numbers /api/populate seeds
}

// NewNumbersHandler constructs a NumbersHandler.  Engine and broker must be
// non-nil.
func NewNumbersHandler(engine *service.ReservationEngine, broker *notify.Broker, poolSize int) *NumbersHandler {
    if engine == nil || broker == nil {
        panic("nil dependency passed to NewNumbersHandler")
    }
    return &NumbersHandler{Engine: engine, Broker: broker, PoolSize: poolSize}
}

// GetNumbers handles GET /api/numbers and GET /api/admin/numbers.  Both
// return every ticket ordered by number; the admin path exists so the
// dashboard can be routed and cached independently of the public page.
func (h *NumbersHandler) GetNumbers(c echo.Context) error {
    tickets, err := h.Engine.ListNumbers(c.Request().Context())
    if err != nil {
        c.Logger().Errorf("list numbers: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load numbers"})
    }
    return c.JSON(http.StatusOK, echo.Map{"numbers": tickets})
}

// Subscribe handles GET /api/admin/subscribe.  It holds the connection open
// as a server-sent event stream, emitting a {"update":"refresh"} frame on
// every ticket change and a keep-alive comment every 15 seconds.  The stream
// ends when the client disconnects.
func (h *NumbersHandler) Subscribe(c echo.Context) error {
    w := c.Response()
    w.Header().Set(echo.HeaderContentType, "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    w.WriteHeader(http.StatusOK)
    w.Flush()

    events := h.Broker.Subscribe()
    defer h.Broker.Unsubscribe(events)

    ping := time.NewTicker(keepAliveInterval)
    defer ping.Stop()

    ctx := c.Request().Context()
    for {
        select {
        case <-ctx.Done():
            return nil
        case ev := <-events:
            fmt.Fprintf(w, "event: %s\ndata: {\"update\":\"refresh\"}\n\n", ev)
            w.Flush()
        case <-ping.C:
            fmt.Fprint(w, ": keep-alive\n\n")
            w.Flush()
        }
    }
}

// Populate handles GET /api/populate.  It seeds the pool once; calling it
// again returns 409 instead of duplicating rows.
func (h *NumbersHandler) Populate(c echo.Context) error {
    created, err := h.Engine.PopulatePool(c.Request().Context(), h.PoolSize)
    if err != nil {
        if errors.Is(err, repository.ErrPoolExists) {
            return c.JSON(http.StatusConflict, echo.Map{"message": "Numbers table already populated."})
        }
        var vErr *service.ValidationError
        if errors.As(err, &vErr) {
            return c.JSON(http.StatusBadRequest, echo.Map{"message": vErr.Reason})
        }
        c.Logger().Errorf("populate pool: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to populate numbers"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message": "Database populated successfully!",
        "data":    created,
    })
}

// ReserveNumbers handles POST /api/reserve-numbers.  The reservation is
// all-or-nothing: if any requested number is not available the whole request
// fails with 409 and nothing changes.
func (h *NumbersHandler) ReserveNumbers(c echo.Context) error {
    var body struct {
        Numbers []int  `json:"numbers"`
        Name    string `json:"name"`
        Email   string `json:"email"`
        Phone   string `json:"phone"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request body."})
    }
    holder := model.Holder{Name: body.Name, Email: body.Email, Phone: body.Phone}
    err := h.Engine.ReserveNumbers(c.Request().Context(), body.Numbers, holder)
    if err != nil {
        var vErr *service.ValidationError
        switch {
        case errors.As(err, &vErr):
            return c.JSON(http.StatusBadRequest, echo.Map{"message": vErr.Reason})
        case errors.Is(err, repository.ErrConflict):
            return c.JSON(http.StatusConflict, echo.Map{"message": "Some numbers are no longer available."})
        default:
            c.Logger().Errorf("reserve numbers: %v", err)
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reserve numbers"})
        }
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message": fmt.Sprintf("Numbers %s reserved successfully!", joinNumbers(body.Numbers)),
    })
}

// ConfirmPayment handles POST /api/confirm-payment.  It marks the given
// numbers as sold; holder details stay on the ticket for the record.
func (h *NumbersHandler) ConfirmPayment(c echo.Context) error {
    var body struct {
        Numbers []int `json:"numbers"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request body."})
    }
    if err := h.Engine.ConfirmPayment(c.Request().Context(), body.Numbers); err != nil {
        var vErr *service.ValidationError
        if errors.As(err, &vErr) {
            return c.JSON(http.StatusBadRequest, echo.Map{"message": vErr.Reason})
        }
        c.Logger().Errorf("confirm payment: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to confirm payment"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message": fmt.Sprintf("Payment confirmed for numbers: %s!", joinNumbers(body.Numbers)),
    })
}

// ClearSelection handles POST /api/clear-selection.  It releases the given
// numbers back to available regardless of their prior status.
func (h *NumbersHandler) ClearSelection(c echo.Context) error {
    var body struct {
        Numbers []int `json:"numbers"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request body."})
    }
    if err := h.Engine.ReleaseNumbers(c.Request().Context(), body.Numbers); err != nil {
        c.Logger().Errorf("clear selection: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to clear selection"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message": fmt.Sprintf("Numbers %s released.", joinNumbers(body.Numbers)),
    })
}

func joinNumbers(numbers []int) string {
    parts := make([]string, 0, len(numbers))
    for _, n := range numbers {
        parts = append(parts, strconv.Itoa(n))
    }
    return strings.Join(parts, ", ")
}

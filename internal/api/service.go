// Package api serves the HTTP surface: the chat webhook, the registration
// hook, the reminder job trigger and the admin REST API.
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/emcapital/memberbot/internal/authutil"
	"github.com/emcapital/memberbot/internal/bot"
	"github.com/emcapital/memberbot/internal/members"
	"github.com/emcapital/memberbot/internal/models"
	"github.com/emcapital/memberbot/internal/notify"
	"github.com/emcapital/memberbot/internal/reminder"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v4"
)

const (
	HeaderAdminPassword = "X-Admin-Password"
	HeaderWebhookSecret = "X-Telegram-Bot-Api-Secret-Token"
)

// UpdateProcessor handles one webhook update, *telebot.Bot implements it.
type UpdateProcessor interface {
	ProcessUpdate(u telebot.Update)
}

type Config struct {
	AdminPasswordHash string
	WebhookSecret     string
	GroupChatID       int64
	Branding          bot.Branding
}

type Service struct {
	members   *members.Service
	notifier  *notify.Dispatcher
	scheduler *reminder.Scheduler
	updates   UpdateProcessor
	config    Config
	log       *logrus.Entry
}

func NewService(
	svc *members.Service,
	notifier *notify.Dispatcher,
	scheduler *reminder.Scheduler,
	updates UpdateProcessor,
	cfg Config,
) *Service {
	return &Service{
		members:   svc,
		notifier:  notifier,
		scheduler: scheduler,
		updates:   updates,
		config:    cfg,
		log:       logrus.WithField("component", "api"),
	}
}

// Register mounts every route on e. The webhook route is only mounted when
// an update processor is configured.
func (s *Service) Register(e *echo.Echo, gatherer prometheus.Gatherer) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if s.updates != nil {
		e.POST("/telegram/webhook", s.HandleWebhook())
	}
	e.POST("/registrations", s.HandleRegistration())
	e.POST("/jobs/check-membership-expiry", s.HandleReminderJob(), s.requireAdmin)

	admin := e.Group("/admin", s.requireAdmin)
	admin.GET("/members", s.HandleListMembers())
	admin.GET("/members/:id", s.HandleGetMember())
	admin.PATCH("/members/:id", s.HandleUpdateMember())
	admin.DELETE("/members/:id", s.HandleDeleteMember())
	admin.POST("/members/:id/activate", s.HandleRenewal(true))
	admin.POST("/members/:id/extend", s.HandleRenewal(false))
	admin.POST("/members/:id/block", s.HandleSetBlocked(true))
	admin.POST("/members/:id/unblock", s.HandleSetBlocked(false))
	admin.POST("/members/:id/remind", s.HandleRemind())
	admin.POST("/members/:id/message", s.HandleDirectMessage())
	admin.GET("/stats", s.HandlePaymentStats())
	admin.POST("/grouppost", s.HandleGroupPost())
}

func (s *Service) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authutil.CheckPassword(s.config.AdminPasswordHash, c.Request().Header.Get(HeaderAdminPassword)); err != nil {
			s.log.Warnf("rejected admin request %s %s from %s", c.Request().Method, c.Path(), c.RealIP())
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return next(c)
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, members.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, members.ErrValidation), errors.Is(err, reminder.ErrNoChat):
		return http.StatusBadRequest
	case errors.Is(err, members.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, notify.ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) fail(c echo.Context, err error) error {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Errorf("%s %s failed: %v", c.Request().Method, c.Path(), err)
		if errors.Is(err, members.ErrStore) {
			return c.JSON(status, echo.Map{"error": "database error"})
		}
	} else {
		s.log.Warnf("%s %s rejected: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func (s *Service) HandleWebhook() echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authutil.CheckWebhookSecret(s.config.WebhookSecret, c.Request().Header.Get(HeaderWebhookSecret)); err != nil {
			s.log.Warnf("rejected webhook call from %s", c.RealIP())
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}

		var update telebot.Update
		if err := c.Bind(&update); err != nil {
			return badRequest(c, "invalid update")
		}

		s.updates.ProcessUpdate(update)
		return c.NoContent(http.StatusOK)
	}
}

type registrationRequest struct {
	Email      string `json:"email"`
	ChatHandle string `json:"chat_handle"`
}

func (s *Service) HandleRegistration() echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registrationRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}

		ctx := c.Request().Context()
		rec, err := s.members.Register(ctx, req.Email, req.ChatHandle)
		if err != nil {
			return s.fail(c, err)
		}
		s.log.Infof("registered %s", rec.Email)

		if rec.NotifyByEmail {
			if err := s.notifier.SendEmail(ctx, welcomeEmail(s.config.Branding, rec)); err != nil {
				s.log.Warnf("failed to send welcome email to %s: %v", rec.Email, err)
			}
		}
		if err := s.notifier.NotifyAdmins(ctx, registrationAdminText(rec)); err != nil {
			s.log.Warnf("failed to notify admins about %s: %v", rec.Email, err)
		}

		return c.JSON(http.StatusCreated, s.members.View(rec, s.members.Now()))
	}
}

func (s *Service) HandleReminderJob() echo.HandlerFunc {
	return func(c echo.Context) error {
		res := s.scheduler.Run(c.Request().Context(), s.members.Now())
		return c.JSON(http.StatusOK, res)
	}
}

func (s *Service) HandleListMembers() echo.HandlerFunc {
	return func(c echo.Context) error {
		recs, err := s.members.Members(c.Request().Context())
		if err != nil {
			return s.fail(c, err)
		}

		now := s.members.Now()
		views := make([]members.View, 0, len(recs))
		for _, rec := range recs {
			views = append(views, s.members.View(rec, now))
		}
		return c.JSON(http.StatusOK, views)
	}
}

func (s *Service) HandleGetMember() echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		rec, err := s.members.Get(ctx, c.Param("id"))
		if err != nil {
			return s.fail(c, err)
		}
		payments, err := s.members.Payments(ctx, rec.UserID)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{
			"member":   s.members.View(rec, s.members.Now()),
			"payments": payments,
		})
	}
}

type updateRequest struct {
	AdminNotes    *string    `json:"admin_notes"`
	ChatHandle    *string    `json:"chat_handle"`
	ChatID        *int64     `json:"chat_id"`
	PaidUntil     *time.Time `json:"paid_until"`
	NotifyByEmail *bool      `json:"notify_by_email"`
	NotifyByChat  *bool      `json:"notify_by_chat"`
}

func (s *Service) HandleUpdateMember() echo.HandlerFunc {
	return func(c echo.Context) error {
		var req updateRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}

		rec, err := s.members.UpdateProfile(c.Request().Context(), c.Param("id"), members.ProfileInput{
			AdminNotes:    req.AdminNotes,
			ChatHandle:    req.ChatHandle,
			ChatID:        req.ChatID,
			PaidUntil:     req.PaidUntil,
			NotifyByEmail: req.NotifyByEmail,
			NotifyByChat:  req.NotifyByChat,
		})
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, s.members.View(rec, s.members.Now()))
	}
}

func (s *Service) HandleDeleteMember() echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.members.Delete(c.Request().Context(), c.Param("id")); err != nil {
			return s.fail(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type renewalRequest struct {
	Kind      string     `json:"membership_kind"`
	PaidAt    *time.Time `json:"paid_at"`
	PaidUntil *time.Time `json:"paid_until"`
	Amount    *float64   `json:"amount"`
}

type renewalResponse struct {
	Member         members.View         `json:"member"`
	Payment        *models.PaymentEvent `json:"payment"`
	MemberNotified bool                 `json:"member_notified"`
}

// HandleRenewal activates or extends a membership with admin-entered values.
func (s *Service) HandleRenewal(activate bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req renewalRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}

		in := members.PaymentInput{
			Kind:      models.MembershipKind(strings.ToLower(strings.TrimSpace(req.Kind))),
			PaidAt:    req.PaidAt,
			PaidUntil: req.PaidUntil,
			Amount:    req.Amount,
		}

		ctx := c.Request().Context()
		var (
			renewal *members.Renewal
			err     error
		)
		if activate {
			renewal, err = s.members.ActivateUser(ctx, c.Param("id"), in)
		} else {
			renewal, err = s.members.ExtendUser(ctx, c.Param("id"), in)
		}
		if renewal == nil {
			return s.fail(c, err)
		}
		if err != nil {
			// the record was updated but the payment event is missing
			s.log.Errorf("renewal of %s is incomplete: %v", renewal.Record.Email, err)
		}

		loc := s.members.Location()
		text := s.config.Branding.ExtendedMemberText(renewal, loc)
		if activate {
			text = s.config.Branding.ActivatedMemberText(renewal, loc)
		}

		resp := renewalResponse{
			Member:  s.members.View(renewal.Record, s.members.Now()),
			Payment: renewal.Payment,
		}
		if renewal.Record.HasChat() {
			if err := s.notifier.SendText(ctx, *renewal.Record.ChatID, text); err != nil {
				s.log.Warnf("failed to notify %s: %v", renewal.Record.Email, err)
			} else {
				resp.MemberNotified = true
			}
		}

		return c.JSON(http.StatusOK, resp)
	}
}

func (s *Service) HandleSetBlocked(blocked bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, err := s.members.SetBlocked(c.Request().Context(), c.Param("id"), blocked)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, s.members.View(rec, s.members.Now()))
	}
}

func (s *Service) HandleRemind() echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		rec, err := s.members.Get(ctx, c.Param("id"))
		if err != nil {
			return s.fail(c, err)
		}
		if err := s.scheduler.RemindMember(ctx, rec, s.members.Now()); err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"sent": true})
	}
}

type textRequest struct {
	Text string `json:"text"`
}

func (r textRequest) valid() bool {
	return strings.TrimSpace(r.Text) != ""
}

// HandleDirectMessage sends an admin-written message to one member's chat.
func (s *Service) HandleDirectMessage() echo.HandlerFunc {
	return func(c echo.Context) error {
		var req textRequest
		if err := c.Bind(&req); err != nil || !req.valid() {
			return badRequest(c, "text is required")
		}

		ctx := c.Request().Context()
		rec, err := s.members.Get(ctx, c.Param("id"))
		if err != nil {
			return s.fail(c, err)
		}
		if !rec.HasChat() {
			return s.fail(c, reminder.ErrNoChat)
		}
		if err := s.notifier.SendText(ctx, *rec.ChatID, directMessageText(s.config.Branding, req.Text)); err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"sent": true})
	}
}

func (s *Service) HandlePaymentStats() echo.HandlerFunc {
	return func(c echo.Context) error {
		stats, err := s.members.PaymentStats(c.Request().Context(), s.members.Now())
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, stats)
	}
}

func (s *Service) HandleGroupPost() echo.HandlerFunc {
	return func(c echo.Context) error {
		var req textRequest
		if err := c.Bind(&req); err != nil || !req.valid() {
			return badRequest(c, "text is required")
		}
		if s.config.GroupChatID == 0 {
			return badRequest(c, "group posting is not configured")
		}
		if err := s.notifier.SendText(c.Request().Context(), s.config.GroupChatID, req.Text); err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"sent": true})
	}
}

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/domain/model"
	"protagonist-billing/internal/domain/ports/adapter"
	"protagonist-billing/internal/infra/logging"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// preBillingCheckHandler is the target of the fired one-shot trigger. The
// scheduler delivers at-least-once, so replays of the same payload must come
// back successful without paying twice; the use case guarantees that.
func (s *Server) preBillingCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var p adapter.TriggerPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if p.Action != adapter.ActionPreBillingCheck {
		http.Error(w, domain.ErrInvalidAction.Error(), http.StatusBadRequest)
		return
	}
	if p.UserID == "" || p.SubscriptionID == "" {
		http.Error(w, "userId and subscriptionId are required", http.StatusBadRequest)
		return
	}

	comp, err := s.refundUC.RunPreBillingCheck(ctx, p.UserID, p.SubscriptionID, p.PaymentID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrChallengeNotFound):
			http.NotFound(w, r)
		case errors.Is(err, domain.ErrCheckInProgress):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrInvalidState):
			http.Error(w, "user has no billing window", http.StatusBadRequest)
		default:
			logging.With(ctx, s.log).Error().Err(err).Str("user_id", p.UserID).Msg("pre-billing check failed")
			http.Error(w, "Failed to run pre-billing check", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

type userCreateRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (s *Server) userCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req userCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	user, err := s.userUC.Register(r.Context(), req.Email, req.FirstName, req.LastName)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) userGetHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.userUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to get user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type stripeLinkRequest struct {
	CustomerID     string `json:"customerId"`
	SubscriptionID string `json:"subscriptionId"`
}

func (s *Server) userLinkStripeHandler(w http.ResponseWriter, r *http.Request) {
	var req stripeLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	user, err := s.userUC.LinkStripeCustomer(r.Context(), chi.URLParam(r, "id"), req.CustomerID, req.SubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to link customer", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type challengeCreateRequest struct {
	UserID       string   `json:"userId"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	Weekdays     []string `json:"weekdays"`
	DeadlineTime string   `json:"deadlineTime"`
	Timezone     string   `json:"timezone"`
}

func (s *Server) challengeCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req challengeCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	ch, err := s.challengeUC.Create(r.Context(), req.UserID, req.StartDate, req.EndDate, req.Weekdays, req.DeadlineTime, req.Timezone)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrUserNotFound):
			http.NotFound(w, r)
		default:
			http.Error(w, "Failed to create challenge", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (s *Server) challengeGetHandler(w http.ResponseWriter, r *http.Request) {
	ch, err := s.challengeUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrChallengeNotFound) || errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to get challenge", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) challengeListHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.challengeUC.ListForUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Failed to list challenges", http.StatusInternalServerError)
		return
	}
	response := struct {
		Data []*model.Challenge `json:"data"`
	}{Data: list}
	writeJSON(w, http.StatusOK, response)
}

type submissionAttachRequest struct {
	SubmissionID string `json:"submissionId"`
}

func (s *Server) submissionAttachHandler(w http.ResponseWriter, r *http.Request) {
	var req submissionAttachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	day, err := s.challengeUC.AttachSubmission(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "date"), req.SubmissionID)
	if err != nil {
		s.writeDayError(w, r, err, "Failed to attach submission")
		return
	}
	writeJSON(w, http.StatusOK, day)
}

type submissionVerdictRequest struct {
	Verdict string `json:"verdict"`
}

func (s *Server) submissionResolveHandler(w http.ResponseWriter, r *http.Request) {
	var req submissionVerdictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	day, err := s.challengeUC.ResolveSubmission(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "date"), model.SubmissionStatus(req.Verdict))
	if err != nil {
		s.writeDayError(w, r, err, "Failed to resolve submission")
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *Server) writeDayError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrChallengeNotFound):
		http.NotFound(w, r)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

// stripeEvent is the provider's webhook envelope, trimmed to the fields the
// subscription lifecycle needs.
type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                 string `json:"id"`
			Customer           string `json:"customer"`
			Subscription       string `json:"subscription"`
			Status             string `json:"status"`
			CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
			CurrentPeriodStart int64  `json:"current_period_start"`
			CurrentPeriodEnd   int64  `json:"current_period_end"`
			AmountPaid         int64  `json:"amount_paid"`
			AmountDue          int64  `json:"amount_due"`
			PaymentIntent      string `json:"payment_intent"`
		} `json:"object"`
	} `json:"data"`
}

func (s *Server) stripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var ev stripeEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	obj := ev.Data.Object
	log := logging.With(ctx, s.log)

	user, err := s.userUC.GetByStripeCustomerID(ctx, obj.Customer)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrInvalidArgument) {
			// Unknown customer: acknowledge so the provider stops retrying.
			log.Warn().Str("customer", obj.Customer).Str("type", ev.Type).Msg("webhook for unknown customer")
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "Failed to resolve customer", http.StatusInternalServerError)
		return
	}

	switch ev.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		start := time.Unix(obj.CurrentPeriodStart, 0).UTC()
		end := time.Unix(obj.CurrentPeriodEnd, 0).UTC()
		err = s.subUC.ApplyPeriod(ctx, user.ID, obj.ID, model.SubscriptionState(obj.Status), start, end, obj.CancelAtPeriodEnd)
	case "customer.subscription.deleted":
		err = s.subUC.Deactivate(ctx, user.ID, obj.ID)
	case "invoice.paid":
		_, err = s.subUC.RecordInvoicePaid(ctx, user.ID, obj.Subscription, obj.ID, obj.PaymentIntent, obj.AmountPaid)
	case "invoice.payment_failed":
		_, err = s.subUC.RecordInvoiceFailed(ctx, user.ID, obj.Subscription, obj.ID, obj.AmountDue)
	default:
		log.Debug().Str("type", ev.Type).Msg("ignoring webhook event")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Str("user_id", user.ID).Msg("webhook handling failed")
		http.Error(w, "Failed to process event", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

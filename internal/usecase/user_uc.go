// File: internal/usecase/user_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/domain/model"
	"protagonist-billing/internal/domain/ports/repository"
	"protagonist-billing/internal/infra/logging"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

type UserUseCase interface {
	Register(ctx context.Context, email, firstName, lastName string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	// GetByStripeCustomerID resolves the account a provider event belongs to.
	GetByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	// LinkStripeCustomer records the provider-side identifiers after checkout.
	LinkStripeCustomer(ctx context.Context, userID, customerID, subscriptionID string) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, logger *zerolog.Logger) *userUC {
	l := logger.With().Str("component", "UserUC").Logger()
	return &userUC{users: users, log: &l}
}

func (u *userUC) Register(ctx context.Context, email, firstName, lastName string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.Register")()

	usr, err := model.NewUser("", email, firstName, lastName)
	if err != nil {
		return nil, err
	}
	if err := u.users.Save(ctx, nil, usr); err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", usr.ID).Str("email", logging.Redact(usr.Email, false)).Msg("user registered")
	return usr, nil
}

func (u *userUC) Get(ctx context.Context, id string) (*model.User, error) {
	usr, err := u.users.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return usr, nil
}

func (u *userUC) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	if customerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	usr, err := u.users.FindByStripeCustomerID(ctx, nil, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return usr, nil
}

func (u *userUC) LinkStripeCustomer(ctx context.Context, userID, customerID, subscriptionID string) (*model.User, error) {
	usr, err := u.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	usr.StripeCustomerID = customerID
	usr.StripeSubscriptionID = subscriptionID
	if err := u.users.Save(ctx, nil, usr); err != nil {
		return nil, err
	}
	return usr, nil
}

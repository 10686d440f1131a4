package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/food-order-service/internal/domain"
)

// SignedConsumerInput — контакты для подписанного покупателя. Пустые поля
// берутся из токена.
type SignedConsumerInput struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// CreateAnonymousConsumer — завести анонимного покупателя для личности.
type CreateAnonymousConsumer struct {
	Consumers domain.ConsumerRepository
	Now       func() time.Time
}

func (uc CreateAnonymousConsumer) Execute(ctx context.Context, id domain.Identity) (domain.Consumer, error) {
	if _, err := uc.Consumers.ConsumerByID(ctx, id.SubjectID); err == nil {
		return domain.Consumer{}, domain.ErrAlreadyExists
	} else if !domain.IsNotFound(err) {
		return domain.Consumer{}, err
	}
	now := nowFunc(uc.Now)()
	c := domain.Consumer{
		ID:          id.SubjectID,
		IsAnonymous: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.Consumers.CreateConsumer(ctx, c); err != nil {
		return domain.Consumer{}, err
	}
	return c, nil
}

// CreateSignedConsumer — завести покупателя с email или телефоном.
// Существующий анонимный покупатель той же личности повышается до
// подписанного с сохранением истории заказов.
type CreateSignedConsumer struct {
	Consumers domain.ConsumerRepository
	Now       func() time.Time
}

func (uc CreateSignedConsumer) Execute(ctx context.Context, id domain.Identity, in SignedConsumerInput) (domain.Consumer, error) {
	email, phone := in.Email, in.Phone
	if email == "" {
		email = id.Email
	}
	if phone == "" {
		phone = id.Phone
	}
	if email == "" && phone == "" {
		return domain.Consumer{}, domain.ErrContactRequired
	}
	now := nowFunc(uc.Now)()

	existing, err := uc.Consumers.ConsumerByID(ctx, id.SubjectID)
	switch {
	case err == nil:
		if !existing.IsAnonymous {
			return domain.Consumer{}, domain.ErrAlreadyExists
		}
		existing.Email, existing.Phone = email, phone
		existing.IsAnonymous = false
		existing.UpdatedAt = now
		if err := uc.Consumers.SaveConsumer(ctx, existing); err != nil {
			return domain.Consumer{}, err
		}
		return existing, nil
	case !domain.IsNotFound(err):
		return domain.Consumer{}, err
	}

	c := domain.Consumer{
		ID:        id.SubjectID,
		Email:     email,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.Consumers.CreateConsumer(ctx, c); err != nil {
		return domain.Consumer{}, err
	}
	return c, nil
}

type GetConsumer struct {
	Consumers domain.ConsumerRepository
}

func (uc GetConsumer) Execute(ctx context.Context, id uuid.UUID) (domain.Consumer, error) {
	return uc.Consumers.ConsumerByID(ctx, id)
}

func nowFunc(f func() time.Time) func() time.Time {
	if f != nil {
		return f
	}
	return func() time.Time { return time.Now().UTC() }
}

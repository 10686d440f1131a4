package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/example/food-order-service/internal/adapter/memstore"
	"github.com/example/food-order-service/internal/domain"
)

func TestCreateVendor(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	uc := CreateVendor{Vendors: s, Foods: s}
	id := domain.Identity{SubjectID: uuid.New(), Phone: "+2348000000000"}

	v, err := uc.Execute(ctx, id, VendorInput{Name: "  Suya Spot "})
	require.NoError(t, err)
	require.Equal(t, "Suya Spot", v.Name)
	require.Equal(t, id.Phone, v.Phone)
	require.Equal(t, domain.VendorClosed, v.Status)

	q, err := s.QueueByName(ctx, "Suya Spot")
	require.NoError(t, err)
	require.Empty(t, q.Orders)

	tests := []struct {
		name    string
		id      domain.Identity
		in      VendorInput
		wantErr error
	}{
		{"same identity", id, VendorInput{Name: "Other"}, domain.ErrAlreadyExists},
		{"name taken", domain.Identity{SubjectID: uuid.New(), Email: "a@b.c"}, VendorInput{Name: "Suya Spot"}, domain.ErrDuplicateName},
		{"empty name", domain.Identity{SubjectID: uuid.New(), Email: "a@b.c"}, VendorInput{Name: " "}, domain.ErrEmptyVendorName},
		{"no contact", domain.Identity{SubjectID: uuid.New()}, VendorInput{Name: "Quiet"}, domain.ErrContactRequired},
		{"bad status", domain.Identity{SubjectID: uuid.New(), Email: "a@b.c"}, VendorInput{Name: "Odd", Status: "Maybe"}, domain.ErrInvalidVendorStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Execute(ctx, tt.id, tt.in)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVendorMenu(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	s := fx.store
	menu := GetMenu{Vendors: s, Foods: s}

	added, err := AddFoods{Vendors: s, Foods: s}.Execute(ctx, fx.vendor.ID, []domain.Food{
		{Name: "Y", Price: domain.FoodPrice{Amount: decimal.RequireFromString("12.50"), Currency: "NGN"}},
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	require.NotEqual(t, uuid.Nil, added[0].ID)

	foods, err := menu.Execute(ctx, "Pizzaria")
	require.NoError(t, err)
	require.Len(t, foods, 2)

	t.Run("duplicate food name", func(t *testing.T) {
		_, err := AddFoods{Vendors: s, Foods: s}.Execute(ctx, fx.vendor.ID, []domain.Food{{Name: "X"}})
		require.ErrorIs(t, err, domain.ErrDuplicateName)
	})

	t.Run("negative price", func(t *testing.T) {
		_, err := AddFoods{Vendors: s, Foods: s}.Execute(ctx, fx.vendor.ID, []domain.Food{
			{Name: "Z", Price: domain.FoodPrice{Amount: decimal.NewFromInt(-1)}},
		})
		require.ErrorIs(t, err, domain.ErrInvalidPrice)
	})

	t.Run("food by name", func(t *testing.T) {
		f, err := GetFood{Menu: menu}.Execute(ctx, "Pizzaria", "Y")
		require.NoError(t, err)
		require.True(t, f.Price.Amount.Equal(decimal.RequireFromString("12.5")))

		_, err = GetFood{Menu: menu}.Execute(ctx, "Pizzaria", "nope")
		require.ErrorIs(t, err, domain.ErrFoodNotFound)

		_, err = GetFood{Menu: menu}.Execute(ctx, "Nobody", "Y")
		require.ErrorIs(t, err, domain.ErrVendorNotFound)
	})
}

func TestUpdateVendorStatus(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	uc := UpdateVendorStatus{Vendors: fx.store}

	v, err := uc.Execute(ctx, fx.vendor.ID, domain.VendorOpen)
	require.NoError(t, err)
	require.Equal(t, domain.VendorOpen, v.Status)

	got, err := GetVendorByName{Vendors: fx.store}.Execute(ctx, "Pizzaria")
	require.NoError(t, err)
	require.Equal(t, domain.VendorOpen, got.Status)

	_, err = uc.Execute(ctx, fx.vendor.ID, "Sleeping")
	require.ErrorIs(t, err, domain.ErrInvalidVendorStatus)

	_, err = uc.Execute(ctx, uuid.New(), domain.VendorOpen)
	require.ErrorIs(t, err, domain.ErrVendorNotFound)
}

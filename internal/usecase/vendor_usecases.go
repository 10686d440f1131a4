package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/example/food-order-service/internal/domain"
)

// VendorInput — поля нового продавца; Menu — блюда, создаваемые вместе с ним.
type VendorInput struct {
	Name           string              `json:"name"`
	Email          string              `json:"email,omitempty"`
	Phone          string              `json:"phone,omitempty"`
	Location       domain.Location     `json:"location"`
	Description    string              `json:"description,omitempty"`
	ProfilePicture string              `json:"profile_picture,omitempty"`
	Status         domain.VendorStatus `json:"status,omitempty"`
	Menu           []domain.Food       `json:"menu,omitempty"`
}

// CreateVendor — зарегистрировать продавца от имени личности из токена.
// Продавец и его очередь создаются одной операцией хранилища.
type CreateVendor struct {
	Vendors domain.VendorRepository
	Foods   domain.FoodRepository
}

func (uc CreateVendor) Execute(ctx context.Context, id domain.Identity, in VendorInput) (domain.Vendor, error) {
	if _, err := uc.Vendors.VendorByID(ctx, id.SubjectID); err == nil {
		return domain.Vendor{}, domain.ErrAlreadyExists
	} else if !domain.IsNotFound(err) {
		return domain.Vendor{}, err
	}

	v := domain.Vendor{
		ID:             id.SubjectID,
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		Location:       in.Location,
		Description:    in.Description,
		ProfilePicture: in.ProfilePicture,
		Status:         in.Status,
	}
	if v.Email == "" {
		v.Email = id.Email
	}
	if v.Phone == "" {
		v.Phone = id.Phone
	}
	if err := v.Validate(); err != nil {
		return domain.Vendor{}, err
	}

	if _, err := uc.Vendors.VendorByName(ctx, v.Name); err == nil {
		return domain.Vendor{}, domain.ErrDuplicateName
	} else if !domain.IsNotFound(err) {
		return domain.Vendor{}, err
	}

	foods, err := prepareFoods(in.Menu, nil)
	if err != nil {
		return domain.Vendor{}, err
	}
	if len(foods) > 0 {
		if err := uc.Foods.InsertFoods(ctx, foods); err != nil {
			return domain.Vendor{}, err
		}
	}
	v.Menu = make([]uuid.UUID, 0, len(foods))
	for _, f := range foods {
		v.Menu = append(v.Menu, f.ID)
	}

	if err := uc.Vendors.CreateVendor(ctx, v, domain.NewQueue(v.Name)); err != nil {
		return domain.Vendor{}, err
	}
	return v, nil
}

// GetVendor — продавец текущей личности.
type GetVendor struct {
	Vendors domain.VendorRepository
}

func (uc GetVendor) Execute(ctx context.Context, id uuid.UUID) (domain.Vendor, error) {
	return uc.Vendors.VendorByID(ctx, id)
}

// GetVendorByName — публичная карточка продавца.
type GetVendorByName struct {
	Vendors domain.VendorRepository
}

func (uc GetVendorByName) Execute(ctx context.Context, name string) (domain.Vendor, error) {
	return uc.Vendors.VendorByName(ctx, name)
}

type UpdateVendorStatus struct {
	Vendors domain.VendorRepository
}

func (uc UpdateVendorStatus) Execute(ctx context.Context, id uuid.UUID, status domain.VendorStatus) (domain.Vendor, error) {
	if !status.Valid() {
		return domain.Vendor{}, domain.ErrInvalidVendorStatus
	}
	v, err := uc.Vendors.VendorByID(ctx, id)
	if err != nil {
		return domain.Vendor{}, err
	}
	v.Status = status
	if err := uc.Vendors.SaveVendor(ctx, v); err != nil {
		return domain.Vendor{}, err
	}
	return v, nil
}

// AddFoods — добавить блюда в меню продавца. Имена блюд в меню уникальны.
type AddFoods struct {
	Vendors domain.VendorRepository
	Foods   domain.FoodRepository
}

func (uc AddFoods) Execute(ctx context.Context, vendorID uuid.UUID, in []domain.Food) ([]domain.Food, error) {
	v, err := uc.Vendors.VendorByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	current, err := uc.Foods.FoodsByIDs(ctx, v.Menu)
	if err != nil {
		return nil, err
	}
	foods, err := prepareFoods(in, current)
	if err != nil {
		return nil, err
	}
	if len(foods) == 0 {
		return nil, domain.ErrValidation
	}
	if err := uc.Foods.InsertFoods(ctx, foods); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(foods))
	for i, f := range foods {
		ids[i] = f.ID
	}
	if err := uc.Vendors.AppendVendorMenu(ctx, v.ID, ids); err != nil {
		return nil, err
	}
	return foods, nil
}

// GetMenu — меню продавца по имени.
type GetMenu struct {
	Vendors domain.VendorRepository
	Foods   domain.FoodRepository
}

func (uc GetMenu) Execute(ctx context.Context, vendorName string) ([]domain.Food, error) {
	v, err := uc.Vendors.VendorByName(ctx, vendorName)
	if err != nil {
		return nil, err
	}
	return uc.Foods.FoodsByIDs(ctx, v.Menu)
}

// GetFood — блюдо из меню продавца по имени блюда.
type GetFood struct {
	Menu GetMenu
}

func (uc GetFood) Execute(ctx context.Context, vendorName, foodName string) (domain.Food, error) {
	foods, err := uc.Menu.Execute(ctx, vendorName)
	if err != nil {
		return domain.Food{}, err
	}
	for _, f := range foods {
		if f.Name == foodName {
			return f, nil
		}
	}
	return domain.Food{}, domain.ErrFoodNotFound
}

// prepareFoods проверяет новые блюда, выдаёт им id и отсекает имена,
// уже занятые в меню или повторённые в запросе.
func prepareFoods(in, existing []domain.Food) ([]domain.Food, error) {
	names := make(map[string]struct{}, len(in)+len(existing))
	for _, f := range existing {
		names[f.Name] = struct{}{}
	}
	out := make([]domain.Food, 0, len(in))
	for _, f := range in {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if _, dup := names[f.Name]; dup {
			return nil, domain.ErrDuplicateName
		}
		names[f.Name] = struct{}{}
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		out = append(out, f)
	}
	return out, nil
}

package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/food-order-service/internal/domain"
)

func seedVendor(t *testing.T, s *Store, name string) domain.Queue {
	t.Helper()
	q := domain.NewQueue(name)
	v := domain.Vendor{ID: uuid.New(), Name: name, Email: "v@example.com"}
	require.NoError(t, s.CreateVendor(context.Background(), v, q))
	return q
}

func TestCreateVendorUniqueName(t *testing.T) {
	s := New()
	seedVendor(t, s, "Pizzaria")

	err := s.CreateVendor(context.Background(),
		domain.Vendor{ID: uuid.New(), Name: "Pizzaria"}, domain.NewQueue("Pizzaria"))
	require.ErrorIs(t, err, domain.ErrDuplicateName)
}

func TestSaveQueueVersionCheck(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedVendor(t, s, "V")

	a, err := s.QueueByName(ctx, "V")
	require.NoError(t, err)
	b, err := s.QueueByName(ctx, "V")
	require.NoError(t, err)

	require.NoError(t, a.Enqueue("1"))
	saved, err := s.SaveQueue(ctx, a)
	require.NoError(t, err)
	require.Equal(t, a.Version+1, saved.Version)

	require.NoError(t, b.Enqueue("2"))
	_, err = s.SaveQueue(ctx, b)
	require.ErrorIs(t, err, domain.ErrConflict)

	got, err := s.QueueByName(ctx, "V")
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, got.Orders)
}

func TestSaveQueueKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedVendor(t, s, "V")

	q, err := s.QueueByName(ctx, "V")
	require.NoError(t, err)
	q.Name = "V"
	q.ID = uuid.New()
	_, err = s.SaveQueue(ctx, q)
	require.NoError(t, err)

	got, err := s.QueueByName(ctx, "V")
	require.NoError(t, err)
	require.NotEqual(t, q.ID, got.ID)
}

func TestQueueStreamEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s := New()
	seedVendor(t, s, "A")

	st, err := s.OpenQueueStream(ctx)
	require.NoError(t, err)
	defer st.Close(ctx)

	t.Run("should emit on orders change in save order", func(t *testing.T) {
		q, _ := s.QueueByName(ctx, "A")
		require.NoError(t, q.Enqueue("1"))
		q, err = s.SaveQueue(ctx, q)
		require.NoError(t, err)
		require.NoError(t, q.Enqueue("2"))
		_, err = s.SaveQueue(ctx, q)
		require.NoError(t, err)

		ev, err := st.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"1"}, ev.Orders)
		ev, err = st.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"1", "2"}, ev.Orders)
	})

	t.Run("should not emit when only the current order changes", func(t *testing.T) {
		q, _ := s.QueueByName(ctx, "A")
		q.CurrentOrder = "x"
		_, err := s.SaveQueue(ctx, q)
		require.NoError(t, err)

		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = st.Next(short)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("should not emit on rename", func(t *testing.T) {
		require.NoError(t, s.RenameQueue(ctx, "A", "B"))

		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := st.Next(short)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		_, err = s.QueueByName(ctx, "B")
		require.NoError(t, err)
	})
}

func TestQueueStreamClose(t *testing.T) {
	ctx := context.Background()
	s := New()

	st, err := s.OpenQueueStream(ctx)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := st.Next(ctx)
		errCh <- err
	}()

	require.NoError(t, s.Close(ctx))
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Close")
	}
	require.NoError(t, st.Close(ctx))
}

func TestHistoryAppendsSurviveSave(t *testing.T) {
	ctx := context.Background()
	s := New()
	v := domain.Vendor{ID: uuid.New(), Name: "V", Email: "v@example.com"}
	require.NoError(t, s.CreateVendor(ctx, v, domain.NewQueue("V")))

	stale, err := s.VendorByID(ctx, v.ID)
	require.NoError(t, err)

	food := uuid.New()
	require.NoError(t, s.AppendVendorMenu(ctx, v.ID, []uuid.UUID{food}))
	require.NoError(t, s.AppendVendorOrder(ctx, v.ID, "1"))

	stale.Status = domain.VendorOpen
	require.NoError(t, s.SaveVendor(ctx, stale))

	got, err := s.VendorByID(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, domain.VendorOpen, got.Status)
	require.Equal(t, []uuid.UUID{food}, got.Menu)
	require.Equal(t, []string{"1"}, got.Orders)
	require.ErrorIs(t, s.AppendVendorOrder(ctx, uuid.New(), "2"), domain.ErrVendorNotFound)

	c := domain.Consumer{ID: uuid.New(), IsAnonymous: true}
	require.NoError(t, s.CreateConsumer(ctx, c))
	require.NoError(t, s.AppendConsumerOrder(ctx, c.ID, "1"))
	c.IsAnonymous = false
	require.NoError(t, s.SaveConsumer(ctx, c))
	gotC, err := s.ConsumerByID(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, gotC.IsAnonymous)
	require.Equal(t, []string{"1"}, gotC.Orders)
	require.ErrorIs(t, s.AppendConsumerOrder(ctx, uuid.New(), "2"), domain.ErrConsumerNotFound)
}

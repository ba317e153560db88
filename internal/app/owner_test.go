package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"rentmesh/internal/domain/item"
	"rentmesh/internal/domain/shared"
	"rentmesh/internal/domain/ticket"
)

func testItem(name string) item.Item {
	return item.Item{Name: name, PriceCents: 1500, Period: item.PeriodDay, Category: "tools"}
}

func newTestOwner(t *testing.T) (*OwnerService, *stubRegistry, *stubScheduler, *stubRenterGW) {
	t.Helper()
	registry := &stubRegistry{}
	scheduler := &stubScheduler{}
	renters := &stubRenterGW{}
	s, err := NewOwnerService(OwnerServiceParams{
		Store:    newMemStore(),
		Registry: registry,
		Payments: scheduler,
		Renters:  renters,
		Address:  "ws://owner:8081/ws",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return s, registry, scheduler, renters
}

func TestAddItemRejectsDuplicates(t *testing.T) {
	s, _, _, _ := newTestOwner(t)

	require.NoError(t, s.AddItem(testItem("drill")))
	assert.ErrorIs(t, s.AddItem(testItem("drill")), shared.ErrAlreadyExists)
}

func TestReserveFirstWins(t *testing.T) {
	s, _, _, _ := newTestOwner(t)
	require.NoError(t, s.AddItem(testItem("drill")))

	first, err := s.Reserve("ws://renter-a:8082/ws", "drill")
	require.NoError(t, err)
	assert.Equal(t, ticket.StateRequested, first.State)
	assert.Len(t, first.HandoverCode, 4)

	_, err = s.Reserve("ws://renter-b:8083/ws", "drill")
	assert.ErrorIs(t, err, shared.ErrAlreadyReserved)

	_, err = s.Reserve("ws://renter-b:8083/ws", "sander")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReleaseMovesTicketAndNotifies(t *testing.T) {
	s, registry, scheduler, renters := newTestOwner(t)
	require.NoError(t, s.AddItem(testItem("drill")))

	tk, err := s.Reserve("ws://renter:8082/ws", "drill")
	require.NoError(t, err)

	require.NoError(t, s.Release(context.Background(), tk.ID))

	state := s.State()
	assert.Empty(t, state.Requested)
	require.Len(t, state.HandedOver, 1)
	assert.Equal(t, ticket.StateHandedOver, state.HandedOver[0].State)
	assert.Equal(t, int64(1), state.HandedOver[0].PaymentID)

	assert.Equal(t, []string{"drill"}, registry.deleted)
	assert.Len(t, scheduler.created, 1)
	require.Len(t, renters.handovers, 1)
	assert.Equal(t, tk.ID, renters.handovers[0].TicketID)
}

func TestReleaseUnknownTicket(t *testing.T) {
	s, _, _, _ := newTestOwner(t)
	assert.ErrorIs(t, s.Release(context.Background(), uuid.New()), shared.ErrTicketNotFound)
}

func TestConfirmHandoverWrongCodeLeavesTicketUntouched(t *testing.T) {
	s, _, _, renters := newTestOwner(t)
	require.NoError(t, s.AddItem(testItem("drill")))
	tk, err := s.Reserve("ws://renter:8082/ws", "drill")
	require.NoError(t, err)
	require.NoError(t, s.Release(context.Background(), tk.ID))

	wrong := "0000"
	if tk.HandoverCode == wrong {
		wrong = "0001"
	}
	err = s.ConfirmHandover(context.Background(), tk.ID, wrong)
	assert.ErrorIs(t, err, shared.ErrInvalidCode)

	state := s.State()
	require.Len(t, state.HandedOver, 1)
	assert.Empty(t, state.Lent)
	assert.Empty(t, renters.rentConfirms)
}

func TestConfirmHandoverCodeAcceptedExactlyOnce(t *testing.T) {
	s, _, _, renters := newTestOwner(t)
	require.NoError(t, s.AddItem(testItem("drill")))
	tk, err := s.Reserve("ws://renter:8082/ws", "drill")
	require.NoError(t, err)
	require.NoError(t, s.Release(context.Background(), tk.ID))

	require.NoError(t, s.ConfirmHandover(context.Background(), tk.ID, tk.HandoverCode))

	state := s.State()
	assert.Empty(t, state.HandedOver)
	require.Len(t, state.Lent, 1)
	assert.Equal(t, ticket.StateActiveRental, state.Lent[0].State)
	require.Len(t, renters.rentConfirms, 1)
	assert.Len(t, renters.rentConfirms[0].Code, 4)
	assert.Equal(t, int64(1), renters.rentConfirms[0].PaymentID)

	// Presenting the same code again must fail: the ticket already
	// moved on.
	err = s.ConfirmHandover(context.Background(), tk.ID, tk.HandoverCode)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEndRentalReturnsItemAndRelists(t *testing.T) {
	s, registry, _, renters := newTestOwner(t)
	require.NoError(t, s.AddItem(testItem("drill")))
	tk, err := s.Reserve("ws://renter:8082/ws", "drill")
	require.NoError(t, err)
	require.NoError(t, s.Release(context.Background(), tk.ID))
	require.NoError(t, s.ConfirmHandover(context.Background(), tk.ID, tk.HandoverCode))

	returnCode := renters.rentConfirms[0].Code

	wrong := "0000"
	if returnCode == wrong {
		wrong = "0001"
	}
	assert.ErrorIs(t, s.EndRental(context.Background(), tk.ID, wrong), shared.ErrInvalidCode)

	require.NoError(t, s.EndRental(context.Background(), tk.ID, returnCode))

	state := s.State()
	assert.Empty(t, state.Lent)
	require.Len(t, state.Items, 1)
	assert.Equal(t, "drill", state.Items[0].Name)

	assert.Equal(t, []string{"drill"}, registry.addedNames())
	require.Len(t, renters.endConfirms, 1)
	assert.Equal(t, tk.ID, renters.endConfirms[0].TicketID)

	// The return code is spent along with the ticket.
	assert.ErrorIs(t, s.EndRental(context.Background(), tk.ID, returnCode), shared.ErrNotFound)
}

func TestCustodyStateSurvivesRestart(t *testing.T) {
	store := newMemStore()
	s, err := NewOwnerService(OwnerServiceParams{
		Store:    store,
		Registry: &stubRegistry{},
		Payments: &stubScheduler{},
		Renters:  &stubRenterGW{},
		Address:  "ws://owner:8081/ws",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, s.AddItem(testItem("drill")))
	tk, err := s.Reserve("ws://renter:8082/ws", "drill")
	require.NoError(t, err)

	reopened, err := NewOwnerService(OwnerServiceParams{
		Store:    store,
		Registry: &stubRegistry{},
		Payments: &stubScheduler{},
		Renters:  &stubRenterGW{},
		Address:  "ws://owner:8081/ws",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	state := reopened.State()
	require.Len(t, state.Requested, 1)
	assert.Equal(t, tk.ID, state.Requested[0].ID)
	assert.Equal(t, tk.HandoverCode, state.Requested[0].HandoverCode)
}

// An item is always in exactly one custody list, whatever order the
// lifecycle operations arrive in.
func TestCustodyListsStayDisjoint(t *testing.T) {
	names := []string{"drill", "sander", "kayak"}
	rapid.Check(t, func(rt *rapid.T) {
		renters := &stubRenterGW{}
		s, err := NewOwnerService(OwnerServiceParams{
			Store:    newMemStore(),
			Registry: &stubRegistry{},
			Payments: &stubScheduler{},
			Renters:  renters,
			Address:  "ws://owner:8081/ws",
			Logger:   zerolog.Nop(),
		})
		if err != nil {
			rt.Fatal(err)
		}
		for _, n := range names {
			if err := s.AddItem(testItem(n)); err != nil {
				rt.Fatal(err)
			}
		}

		ctx := context.Background()
		tickets := make(map[string]*ticket.Ticket)
		returnCodes := make(map[string]string)

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			name := rapid.SampledFrom(names).Draw(rt, "name")
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				if tk, err := s.Reserve("ws://renter:8082/ws", name); err == nil {
					tickets[name] = tk
				}
			case 1:
				if tk := tickets[name]; tk != nil {
					_ = s.Release(ctx, tk.ID)
				}
			case 2:
				if tk := tickets[name]; tk != nil {
					if err := s.ConfirmHandover(ctx, tk.ID, tk.HandoverCode); err == nil {
						for _, rc := range renters.rentConfirms {
							if rc.TicketID == tk.ID {
								returnCodes[name] = rc.Code
							}
						}
					}
				}
			case 3:
				if tk, code := tickets[name], returnCodes[name]; tk != nil && code != "" {
					if err := s.EndRental(ctx, tk.ID, code); err == nil {
						delete(tickets, name)
						delete(returnCodes, name)
					}
				}
			}

			state := s.State()
			seen := make(map[string]int)
			for _, it := range state.Items {
				seen[it.Name]++
			}
			for _, list := range [][]ticket.Ticket{state.Requested, state.HandedOver, state.Lent} {
				for _, tk := range list {
					seen[tk.Item.Name]++
				}
			}
			for _, n := range names {
				if seen[n] != 1 {
					rt.Fatalf("item %q appears %d times across custody lists", n, seen[n])
				}
			}
		}
	})
}

package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentmesh/internal/adapters/ledger"
	"rentmesh/internal/adapters/transport"
	"rentmesh/internal/clients"
	"rentmesh/internal/domain/item"
	"rentmesh/internal/domain/shared"
	"rentmesh/internal/protocol"
)

// marketplace wires all five agent roles over real websocket transport,
// each with its own server and client, the way separate processes would
// talk in a deployment.
type marketplace struct {
	directory *DirectoryService
	registry  *RegistryService
	scheduler *PaymentService
	owner     *OwnerService
	renter    *RenterService

	ownerAddr  string
	renterAddr string
	ledger     *ledger.SQLiteLedger
}

func newAgentServer(t *testing.T) (*transport.Server, string) {
	t.Helper()
	srv := transport.NewServer(transport.ServerParams{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		MaxWorkers:      8,
		MaxCapacity:     64,
		Logger:          zerolog.Nop(),
	})
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return srv, hs.URL
}

func newAgentClient(t *testing.T, address string) *transport.Client {
	t.Helper()
	c := transport.NewClient(transport.ClientParams{
		Address: address,
		Timeout: 5 * time.Second,
		Logger:  zerolog.Nop(),
	})
	t.Cleanup(c.Close)
	return c
}

func newMarketplace(t *testing.T) *marketplace {
	t.Helper()
	m := &marketplace{}

	walletLedger, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { walletLedger.Close() })
	m.ledger = walletLedger

	directorySrv, directoryAddr := newAgentServer(t)
	registrySrv, registryAddr := newAgentServer(t)
	schedulerSrv, schedulerAddr := newAgentServer(t)
	ownerSrv, ownerAddr := newAgentServer(t)
	renterSrv, renterAddr := newAgentServer(t)
	m.ownerAddr = ownerAddr
	m.renterAddr = renterAddr

	m.directory, err = NewDirectoryService(DirectoryServiceParams{
		Store:  newMemStore(),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	m.directory.RegisterHandlers(directorySrv)

	registryClient := newAgentClient(t, registryAddr)
	m.registry, err = NewRegistryService(RegistryServiceParams{
		Store:     newMemStore(),
		Directory: clients.NewDirectoryClient(registryClient, directoryAddr),
		Location:  "amsterdam",
		Address:   registryAddr,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	m.registry.RegisterHandlers(registrySrv)
	require.NoError(t, m.registry.Start(context.Background()))

	schedulerClient := newAgentClient(t, schedulerAddr)
	m.scheduler, err = NewPaymentService(PaymentServiceParams{
		Store:          newMemStore(),
		Renters:        clients.NewRenterClient(schedulerClient),
		Ledger:         walletLedger,
		RequestTimeout: 5 * time.Second,
		MaxWorkers:     4,
		MaxCapacity:    16,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)
	m.scheduler.Start()
	t.Cleanup(m.scheduler.Stop)
	m.scheduler.RegisterHandlers(schedulerSrv)

	ownerClient := newAgentClient(t, ownerAddr)
	m.owner, err = NewOwnerService(OwnerServiceParams{
		Store:    newMemStore(),
		Registry: clients.NewRegistryClient(ownerClient, registryAddr),
		Payments: clients.NewSchedulerClient(ownerClient, schedulerAddr),
		Renters:  clients.NewRenterClient(ownerClient),
		Address:  ownerAddr,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	m.owner.RegisterHandlers(ownerSrv)

	renterClient := newAgentClient(t, renterAddr)
	m.renter, err = NewRenterService(RenterServiceParams{
		Store:    newMemStore(),
		Owners:   clients.NewOwnerClient(renterClient),
		Payments: clients.NewSchedulerClient(renterClient, schedulerAddr),
		Registry: clients.NewRegistryClient(renterClient, registryAddr),
		Ledger:   walletLedger,
		Address:  renterAddr,
		User:     protocol.UserRecord{Name: "Alex"},
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	m.renter.RegisterHandlers(renterSrv)

	return m
}

func TestFullRentalLifecycle(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	// The renter registers and gets a permanent 10-digit id.
	require.NoError(t, m.renter.Register(ctx))
	assert.Len(t, m.renter.State().User.ID, 10)

	// The owner lists a drill at the location registry.
	drill := item.Item{Name: "drill", PriceCents: 1500, Period: item.PeriodDay, Category: "tools"}
	require.NoError(t, m.owner.AddItem(drill))
	require.NoError(t, m.owner.ListItem(ctx, "drill"))

	// The renter finds it in the catalogue.
	listings, err := m.renter.Browse(ctx, "drill")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, m.ownerAddr, listings[0].OwnerAddress)

	// Reservation takes the item out of the available inventory.
	ticketID, err := m.renter.Reserve(ctx, listings[0].OwnerAddress, listings[0].Item)
	require.NoError(t, err)

	ownerState := m.owner.State()
	assert.Empty(t, ownerState.Items)
	require.Len(t, ownerState.Requested, 1)
	handoverCode := ownerState.Requested[0].HandoverCode

	// A second reservation of the same item loses.
	_, err = m.renter.Reserve(ctx, listings[0].OwnerAddress, listings[0].Item)
	assert.ErrorIs(t, err, shared.ErrAlreadyReserved)

	// The owner physically hands the item over: the listing disappears,
	// a payment obligation is registered, and the renter holds a
	// pending lease.
	require.NoError(t, m.owner.Release(ctx, ticketID))
	assert.Empty(t, m.registry.Catalogue(""))

	obligations, err := m.scheduler.Obligations(ctx)
	require.NoError(t, err)
	require.Len(t, obligations, 1)
	assert.Equal(t, int64(1500), obligations[0].AmountCents)
	assert.Equal(t, item.PeriodDay.Minutes(), obligations[0].FrequencyMinutes)

	require.Len(t, m.renter.State().Pending, 1)

	// A wrong handover code is rejected and nothing moves.
	err = m.renter.ConfirmHandover(ctx, ticketID, wrongCode(handoverCode))
	assert.ErrorIs(t, err, shared.ErrInvalidCode)
	assert.Len(t, m.renter.State().Pending, 1)

	// The right code activates the rental on both sides.
	require.NoError(t, m.renter.ConfirmHandover(ctx, ticketID, handoverCode))

	ownerState = m.owner.State()
	assert.Empty(t, ownerState.HandedOver)
	require.Len(t, ownerState.Lent, 1)

	renterState := m.renter.State()
	assert.Empty(t, renterState.Pending)
	require.Len(t, renterState.Rented, 1)
	require.Len(t, renterState.Rents, 1)
	assert.Equal(t, obligations[0].ID, renterState.Rents[0].PaymentID)

	// The scheduler's first tick moves a day's rent from the renter's
	// wallet to the owner's.
	require.NoError(t, m.ledger.Credit(m.renterAddr, 10000))
	m.scheduler.Tick()
	require.Eventually(t, func() bool {
		balance, err := m.ledger.Balance(m.ownerAddr)
		return err == nil && balance == 1500
	}, 5*time.Second, 20*time.Millisecond)

	// Returning the item closes the loop: inventory and listing are
	// back, leases cleared, obligation cancelled.
	require.NoError(t, m.renter.Return(ctx, ticketID))

	ownerState = m.owner.State()
	assert.Empty(t, ownerState.Lent)
	require.Len(t, ownerState.Items, 1)
	assert.Len(t, m.registry.Catalogue("drill"), 1)

	renterState = m.renter.State()
	assert.Empty(t, renterState.Rented)
	assert.Empty(t, renterState.Rents)

	obligations, err = m.scheduler.Obligations(ctx)
	require.NoError(t, err)
	assert.Empty(t, obligations)
}

func TestRentalBetweenStrangersByTicket(t *testing.T) {
	// Two rentals of same-named items must never cross: the ticket id,
	// not the item name, addresses every lifecycle message.
	m := newMarketplace(t)
	ctx := context.Background()

	require.NoError(t, m.owner.AddItem(item.Item{Name: "drill", PriceCents: 1000, Period: item.PeriodHour, Category: "tools"}))
	require.NoError(t, m.owner.AddItem(item.Item{Name: "sander", PriceCents: 2000, Period: item.PeriodHour, Category: "tools"}))

	drillTicket, err := m.renter.Reserve(ctx, m.ownerAddr, item.Item{Name: "drill"})
	require.NoError(t, err)
	sanderTicket, err := m.renter.Reserve(ctx, m.ownerAddr, item.Item{Name: "sander"})
	require.NoError(t, err)
	require.NotEqual(t, drillTicket, sanderTicket)

	require.NoError(t, m.owner.Release(ctx, drillTicket))
	require.NoError(t, m.owner.Release(ctx, sanderTicket))

	codes := make(map[string]string)
	for _, tk := range m.owner.State().HandedOver {
		codes[tk.Item.Name] = tk.HandoverCode
	}

	// The drill's code does not activate the sander's ticket.
	if codes["drill"] != codes["sander"] {
		err = m.renter.ConfirmHandover(ctx, sanderTicket, codes["drill"])
		assert.ErrorIs(t, err, shared.ErrInvalidCode)
	}

	require.NoError(t, m.renter.ConfirmHandover(ctx, drillTicket, codes["drill"]))

	ownerState := m.owner.State()
	require.Len(t, ownerState.Lent, 1)
	assert.Equal(t, "drill", ownerState.Lent[0].Item.Name)
}

func wrongCode(code string) string {
	if code == "0000" {
		return "0001"
	}
	return "0000"
}

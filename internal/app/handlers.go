package app

import (
	"context"

	"rentmesh/internal/adapters/transport"
	"rentmesh/internal/protocol"
)

// RegisterHandlers wires the owner lifecycle messages into the fabric
// server.
func (s *OwnerService) RegisterHandlers(srv *transport.Server) {
	srv.Handle(protocol.TypeRequestedItem, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.RequestedItem
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		t, err := s.Reserve(env.From, req.Item.Name)
		if err != nil {
			return nil, err
		}
		return protocol.OK(protocol.ReserveReply{TicketID: t.ID})
	})

	srv.Handle(protocol.TypeHandOverConfirm, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.HandOverConfirm
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		if err := s.ConfirmHandover(ctx, req.TicketID, req.Code); err != nil {
			return nil, err
		}
		return protocol.OK(nil)
	})

	srv.Handle(protocol.TypeHandOverEnd, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.HandOverEnd
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		if err := s.EndRental(ctx, req.TicketID, req.Code); err != nil {
			return nil, err
		}
		return protocol.OK(nil)
	})
}

// RegisterHandlers wires the owner-side pushes and the scheduler's
// transfer requests into the fabric server.
func (s *RenterService) RegisterHandlers(srv *transport.Server) {
	srv.Handle(protocol.TypeHandOverRequest, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.HandOverRequest
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		if req.Agent == "" {
			req.Agent = env.From
		}
		if err := s.acceptHandOver(req); err != nil {
			return nil, err
		}
		return protocol.OK(nil)
	})

	srv.Handle(protocol.TypeRentConfirmRequest, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.RentConfirmRequest
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		if err := s.acceptRentConfirm(req); err != nil {
			return nil, err
		}
		return protocol.OK(nil)
	})

	srv.Handle(protocol.TypeHandOverEndConfirm, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.HandOverEndConfirm
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		if err := s.acceptEndConfirm(ctx, req); err != nil {
			return nil, err
		}
		return protocol.OK(nil)
	})

	srv.Handle(protocol.TypeTransactionRequest, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.TransactionRequest
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		hash, err := s.transfer(ctx, req)
		if err != nil {
			return nil, err
		}
		return protocol.OK(protocol.TransactionReply{TxHash: hash})
	})
}

// RegisterHandlers wires the catalogue and user registration messages
// into the fabric server.
func (s *RegistryService) RegisterHandlers(srv *transport.Server) {
	srv.Handle(protocol.TypeAddRequest, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.AddRequest
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		owner := req.AgentAddress
		if owner == "" {
			owner = env.From
		}
		if err := s.AddItem(req.Item, owner); err != nil {
			return nil, err
		}
		return protocol.OK(nil)
	})

	srv.Handle(protocol.TypeDeleteRequest, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.DeleteRequest
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		owner := req.AgentAddress
		if owner == "" {
			owner = env.From
		}
		if err := s.DeleteItem(req.Name, req.Category, owner); err != nil {
			return nil, err
		}
		return protocol.OK(nil)
	})

	srv.Handle(protocol.TypeItemRequest, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.ItemRequest
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		return protocol.OK(protocol.ListingList{Listings: s.Catalogue(req.Name)})
	})

	srv.Handle(protocol.TypeUserRegistration, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.UserRegistrationRequest
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		if req.User.AgentAddress == "" {
			req.User.AgentAddress = env.From
		}
		id, err := s.RegisterUser(ctx, req.User)
		if err != nil {
			return nil, err
		}
		return protocol.OK(protocol.UserID{ID: id})
	})
}

// RegisterHandlers wires the naming messages into the fabric server.
func (s *DirectoryService) RegisterHandlers(srv *transport.Server) {
	srv.Handle(protocol.TypeLocationRequest, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.LocationRequest
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		if req.Location == "" {
			return protocol.OK(protocol.LocationList{Locations: s.Locations()})
		}
		addr, err := s.Lookup(req.Location)
		if err != nil {
			return nil, err
		}
		return protocol.OK(protocol.LocationAddress{Address: addr})
	})

	srv.Handle(protocol.TypeLocationRegistration, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.LocationRegistrationRequest
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		addr := req.Address
		if addr == "" {
			addr = env.From
		}
		if err := s.Register(req.Location, addr); err != nil {
			return nil, err
		}
		return protocol.OK(nil)
	})

	srv.Handle(protocol.TypeLocationUnregistration, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.LocationUnregistrationRequest
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		if err := s.Unregister(req.Location); err != nil {
			return nil, err
		}
		return protocol.OK(nil)
	})

	srv.Handle(protocol.TypeUserIDRequest, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		id, err := s.IssueUserID()
		if err != nil {
			return nil, err
		}
		return protocol.OK(protocol.UserID{ID: id})
	})
}

// RegisterHandlers wires the payment messages into the fabric server.
func (s *PaymentService) RegisterHandlers(srv *transport.Server) {
	srv.Handle(protocol.TypePaymentRequest, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.PaymentRequest
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		id, err := s.Create(ctx, req.FromAddress, req.ToAddress, req.AmountCents, req.FrequencyMinutes)
		if err != nil {
			return nil, err
		}
		return protocol.OK(protocol.PaymentReply{ID: id})
	})

	srv.Handle(protocol.TypePaymentCancel, func(ctx context.Context, env *protocol.Envelope) (*protocol.Response, error) {
		var req protocol.PaymentCancel
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		if err := s.Cancel(ctx, req.ID); err != nil {
			return nil, err
		}
		return protocol.OK(nil)
	})
}

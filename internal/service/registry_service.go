package service

import (
	"context"
	"errors"
	"fmt"

	"marealta-service/internal/ledger"
	"marealta-service/internal/models"
	"marealta-service/internal/store"
	"marealta-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRecordNotFound indicates an unknown registry record id
var ErrRecordNotFound = errors.New("record not found")

// RegistryService manages the flat registries around the workflow:
// clients, boats, marinas and the parts catalog. Plain collection CRUD,
// no cross-entity invariants beyond referential checks at create time.
type RegistryService struct {
	store  store.Store
	logger *zap.Logger
}

// NewRegistryService creates a registry service
func NewRegistryService(st store.Store) *RegistryService {
	return &RegistryService{
		store:  st,
		logger: util.GetLogger(),
	}
}

// ListClients returns all clients
func (r *RegistryService) ListClients(ctx context.Context) ([]models.Client, error) {
	return listAll(ctx, r.store, store.Clients)
}

// CreateClient registers a new client
func (r *RegistryService) CreateClient(ctx context.Context, client models.Client) (*models.Client, error) {
	if client.Name == "" {
		return nil, fmt.Errorf("%w: client name is required", ErrValidation)
	}
	client.ID = uuid.New().String()
	return appendTo(ctx, r.store, store.Clients, client)
}

// GetClient returns one client by id
func (r *RegistryService) GetClient(ctx context.Context, clientID string) (*models.Client, error) {
	return getByID(ctx, r.store, store.Clients, clientID, func(c models.Client) string { return c.ID })
}

// UpdateClient overwrites a client's contact fields
func (r *RegistryService) UpdateClient(ctx context.Context, clientID string, client models.Client) (*models.Client, error) {
	if client.Name == "" {
		return nil, fmt.Errorf("%w: client name is required", ErrValidation)
	}
	return updateByID(ctx, r.store, store.Clients, clientID, func(c models.Client) string { return c.ID }, func(c *models.Client) error {
		c.Name = client.Name
		c.Email = client.Email
		c.Phone = client.Phone
		c.Document = client.Document
		return nil
	})
}

// ListBoats returns all boats
func (r *RegistryService) ListBoats(ctx context.Context) ([]models.Boat, error) {
	return listAll(ctx, r.store, store.Boats)
}

// CreateBoat registers a new boat; the owning client must exist
func (r *RegistryService) CreateBoat(ctx context.Context, boat models.Boat) (*models.Boat, error) {
	if boat.Name == "" {
		return nil, fmt.Errorf("%w: boat name is required", ErrValidation)
	}

	var created *models.Boat
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		clients, err := store.Load(tx, store.Clients)
		if err != nil {
			return err
		}
		known := false
		for i := range clients {
			if clients[i].ID == boat.ClientID {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: client %s does not exist", ErrValidation, boat.ClientID)
		}

		boats, err := store.Load(tx, store.Boats)
		if err != nil {
			return err
		}
		boat.ID = uuid.New().String()
		boats = append(boats, boat)
		if err := store.Save(tx, store.Boats, boats); err != nil {
			return err
		}
		created = &boat
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetBoat returns one boat by id
func (r *RegistryService) GetBoat(ctx context.Context, boatID string) (*models.Boat, error) {
	return getByID(ctx, r.store, store.Boats, boatID, func(b models.Boat) string { return b.ID })
}

// UpdateBoat overwrites a boat's descriptive fields; the owner stays
func (r *RegistryService) UpdateBoat(ctx context.Context, boatID string, boat models.Boat) (*models.Boat, error) {
	if boat.Name == "" {
		return nil, fmt.Errorf("%w: boat name is required", ErrValidation)
	}
	return updateByID(ctx, r.store, store.Boats, boatID, func(b models.Boat) string { return b.ID }, func(b *models.Boat) error {
		b.Name = boat.Name
		b.Model = boat.Model
		b.Length = boat.Length
		b.MarinaID = boat.MarinaID
		b.EngineModel = boat.EngineModel
		return nil
	})
}

// ListMarinas returns all marinas
func (r *RegistryService) ListMarinas(ctx context.Context) ([]models.Marina, error) {
	return listAll(ctx, r.store, store.Marinas)
}

// CreateMarina registers a new marina
func (r *RegistryService) CreateMarina(ctx context.Context, marina models.Marina) (*models.Marina, error) {
	if marina.Name == "" {
		return nil, fmt.Errorf("%w: marina name is required", ErrValidation)
	}
	marina.ID = uuid.New().String()
	return appendTo(ctx, r.store, store.Marinas, marina)
}

// GetMarina returns one marina by id
func (r *RegistryService) GetMarina(ctx context.Context, marinaID string) (*models.Marina, error) {
	return getByID(ctx, r.store, store.Marinas, marinaID, func(m models.Marina) string { return m.ID })
}

// UpdateMarina overwrites a marina's fields
func (r *RegistryService) UpdateMarina(ctx context.Context, marinaID string, marina models.Marina) (*models.Marina, error) {
	if marina.Name == "" {
		return nil, fmt.Errorf("%w: marina name is required", ErrValidation)
	}
	return updateByID(ctx, r.store, store.Marinas, marinaID, func(m models.Marina) string { return m.ID }, func(m *models.Marina) error {
		m.Name = marina.Name
		m.City = marina.City
		m.Berths = marina.Berths
		return nil
	})
}

// ListParts returns the parts catalog
func (r *RegistryService) ListParts(ctx context.Context) ([]models.Part, error) {
	return listAll(ctx, r.store, store.Parts)
}

// GetPart returns one part by id
func (r *RegistryService) GetPart(ctx context.Context, partID string) (*models.Part, error) {
	parts, err := r.ListParts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range parts {
		if parts[i].ID == partID {
			return &parts[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ledger.ErrPartNotFound, partID)
}

// CreatePart adds a part to the catalog. Initial stock enters through an
// inventory receipt, not here.
func (r *RegistryService) CreatePart(ctx context.Context, part models.Part) (*models.Part, error) {
	if part.SKU == "" || part.Name == "" {
		return nil, fmt.Errorf("%w: part sku and name are required", ErrValidation)
	}

	var created *models.Part
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		parts, err := store.Load(tx, store.Parts)
		if err != nil {
			return err
		}
		for i := range parts {
			if parts[i].SKU == part.SKU {
				return fmt.Errorf("%w: sku %s already registered", ErrValidation, part.SKU)
			}
		}
		part.ID = uuid.New().String()
		part.Quantity = 0
		parts = append(parts, part)
		if err := store.Save(tx, store.Parts, parts); err != nil {
			return err
		}
		created = &part
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("Part registered", zap.String("part_id", created.ID), zap.String("sku", created.SKU))
	return created, nil
}

// UpdatePart overwrites a part's catalog fields. Quantity and cost are
// owned by the inventory ledger and never change here.
func (r *RegistryService) UpdatePart(ctx context.Context, partID string, part models.Part) (*models.Part, error) {
	if part.Name == "" {
		return nil, fmt.Errorf("%w: part name is required", ErrValidation)
	}
	return updateByID(ctx, r.store, store.Parts, partID, func(p models.Part) string { return p.ID }, func(p *models.Part) error {
		p.Name = part.Name
		p.Barcode = part.Barcode
		p.Price = part.Price
		p.MinStock = part.MinStock
		p.Location = part.Location
		return nil
	})
}

// ListMovements returns the movement log, optionally filtered by part
func (r *RegistryService) ListMovements(ctx context.Context, partID string) ([]models.StockMovement, error) {
	movements, err := listAll(ctx, r.store, store.Movements)
	if err != nil {
		return nil, err
	}
	if partID == "" {
		return movements, nil
	}
	filtered := make([]models.StockMovement, 0, len(movements))
	for _, m := range movements {
		if m.PartID == partID {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// ListTransactions returns the financial ledger
func (r *RegistryService) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	return listAll(ctx, r.store, store.Transactions)
}

// UserByToken resolves an API token to a user, or nil when unknown
func (r *RegistryService) UserByToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	users, err := listAll(ctx, r.store, store.Users)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Token == token {
			return &users[i], nil
		}
	}
	return nil, nil
}

func listAll[T any](ctx context.Context, st store.Store, c store.Collection[T]) ([]T, error) {
	var items []T
	err := st.View(ctx, func(tx *store.Tx) error {
		var err error
		items, err = store.Load(tx, c)
		return err
	})
	return items, err
}

func appendTo[T any](ctx context.Context, st store.Store, c store.Collection[T], item T) (*T, error) {
	err := st.Update(ctx, func(tx *store.Tx) error {
		items, err := store.Load(tx, c)
		if err != nil {
			return err
		}
		items = append(items, item)
		return store.Save(tx, c, items)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func getByID[T any](ctx context.Context, st store.Store, c store.Collection[T], id string, idOf func(T) string) (*T, error) {
	items, err := listAll(ctx, st, c)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if idOf(items[i]) == id {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}

func updateByID[T any](ctx context.Context, st store.Store, c store.Collection[T], id string, idOf func(T) string, mutate func(*T) error) (*T, error) {
	var updated T
	err := st.Update(ctx, func(tx *store.Tx) error {
		items, err := store.Load(tx, c)
		if err != nil {
			return err
		}
		for i := range items {
			if idOf(items[i]) != id {
				continue
			}
			if err := mutate(&items[i]); err != nil {
				return err
			}
			if err := store.Save(tx, c, items); err != nil {
				return err
			}
			updated = items[i]
			return nil
		}
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

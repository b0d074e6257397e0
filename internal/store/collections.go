package store

import (
	"encoding/json"
	"fmt"

	"marealta-service/internal/models"

	"github.com/shopspring/decimal"
)

// Collection describes a typed collection: its key and the default seed
// returned on first access. Seed builds a fresh slice on every call, so
// callers can never alias or mutate the defaults.
type Collection[T any] struct {
	Key  string
	Seed func() []T
}

// Load reads the whole collection, falling back to the seed when the key
// has never been written.
func Load[T any](tx *Tx, c Collection[T]) ([]T, error) {
	data, ok, err := tx.Bytes(c.Key)
	if err != nil {
		return nil, err
	}
	if !ok {
		if c.Seed != nil {
			return c.Seed(), nil
		}
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrSerialization, c.Key, err)
	}
	return items, nil
}

// Save stages a whole-collection replace.
func Save[T any](tx *Tx, c Collection[T], items []T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrSerialization, c.Key, err)
	}
	return tx.PutBytes(c.Key, data)
}

// Counters holds per-collection sequence values (today only the service
// order number).
type Counters struct {
	OrderNumber int `json:"order_number"`
}

var (
	Orders = Collection[models.ServiceOrder]{Key: KeyOrders, Seed: func() []models.ServiceOrder {
		return []models.ServiceOrder{}
	}}

	Movements = Collection[models.StockMovement]{Key: KeyMovements, Seed: func() []models.StockMovement {
		return []models.StockMovement{}
	}}

	Transactions = Collection[models.Transaction]{Key: KeyTransactions, Seed: func() []models.Transaction {
		return []models.Transaction{}
	}}

	Parts = Collection[models.Part]{Key: KeyParts, Seed: seedParts}

	Clients = Collection[models.Client]{Key: KeyClients, Seed: func() []models.Client {
		return []models.Client{
			{ID: "cl-0001", Name: "Ricardo Siqueira", Email: "ricardo@example.com", Phone: "+55 11 98888-0001"},
		}
	}}

	Boats = Collection[models.Boat]{Key: KeyBoats, Seed: func() []models.Boat {
		return []models.Boat{
			{ID: "bt-0001", ClientID: "cl-0001", Name: "Vento Sul", Model: "Phantom 303", Length: 9.4, MarinaID: "mr-0001", EngineModel: "Mercruiser 6.2L"},
		}
	}}

	Marinas = Collection[models.Marina]{Key: KeyMarinas, Seed: func() []models.Marina {
		return []models.Marina{
			{ID: "mr-0001", Name: "Marina Porto Bracuhy", City: "Angra dos Reis", Berths: 420},
		}
	}}

	Users = Collection[models.User]{Key: KeyUsers, Seed: func() []models.User {
		return []models.User{
			{ID: "us-0001", Name: "Administrador", Role: models.RoleAdmin, Token: "dev-admin-token"},
		}
	}}

	CountersCol = Collection[Counters]{Key: KeyCounters, Seed: func() []Counters {
		return []Counters{{OrderNumber: 0}}
	}}
)

func seedParts() []models.Part {
	return []models.Part{
		{
			ID:       "pt-0001",
			SKU:      "FLT-OLEO-35",
			Name:     "Filtro de óleo 35-866340K01",
			Quantity: 12,
			Cost:     decimal.NewFromFloat(48.50),
			Price:    decimal.NewFromFloat(89.90),
			MinStock: 4,
			Location: "A1-03",
		},
		{
			ID:       "pt-0002",
			SKU:      "VELA-NGK-BR8",
			Name:     "Vela NGK BR8HS-10",
			Quantity: 40,
			Cost:     decimal.NewFromFloat(14.20),
			Price:    decimal.NewFromFloat(29.00),
			MinStock: 10,
			Location: "A2-01",
		},
		{
			ID:       "pt-0003",
			SKU:      "ROT-BOMBA-47",
			Name:     "Rotor bomba d'água 47-8M0100527",
			Quantity: 6,
			Cost:     decimal.NewFromFloat(112.00),
			Price:    decimal.NewFromFloat(198.00),
			MinStock: 2,
			Location: "B1-06",
		},
	}
}

// NextOrderNumber increments and returns the order sequence inside the
// caller's transaction.
func NextOrderNumber(tx *Tx) (int, error) {
	counters, err := Load(tx, CountersCol)
	if err != nil {
		return 0, err
	}
	if len(counters) == 0 {
		counters = []Counters{{}}
	}
	counters[0].OrderNumber++
	if err := Save(tx, CountersCol, counters); err != nil {
		return 0, err
	}
	return counters[0].OrderNumber, nil
}

package registry

import (
	"fmt"
	"log"

	"github.com/jwolfsohn/Atlas-Sentinel/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPersister mirrors registry records into the ports and routes tables.
type GormPersister struct {
	db *gorm.DB
}

func NewGormPersister(db *gorm.DB) *GormPersister {
	return &GormPersister{db: db}
}

func (p *GormPersister) Migrate() error {
	return p.db.AutoMigrate(&models.Port{}, &models.Route{})
}

func (p *GormPersister) SavePort(port models.Port) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&port).Error
}

func (p *GormPersister) SaveRoute(route models.Route) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&route).Error
}

// LoadInto copies persisted ports and routes into store and returns how many ports
// were found.
func (p *GormPersister) LoadInto(store Store) (int, error) {
	var ports []models.Port
	if err := p.db.Order("port_id").Find(&ports).Error; err != nil {
		return 0, fmt.Errorf("load ports: %w", err)
	}
	var routes []models.Route
	if err := p.db.Order("route_id").Find(&routes).Error; err != nil {
		return 0, fmt.Errorf("load routes: %w", err)
	}
	for _, port := range ports {
		if err := store.UpsertPort(port); err != nil {
			return 0, err
		}
	}
	for _, route := range routes {
		if err := store.UpsertRoute(route); err != nil {
			return 0, err
		}
	}
	return len(ports), nil
}

// PersistentStore writes every upsert through to the database after the in-memory
// store accepts it. Database failures are logged, the in-memory state stays authoritative.
type PersistentStore struct {
	Store
	persister *GormPersister
}

// OpenPersistent migrates the tables, loads what is stored and seeds the default
// registry on first run.
func OpenPersistent(inner Store, persister *GormPersister) (*PersistentStore, error) {
	if err := persister.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate registry tables: %w", err)
	}
	n, err := persister.LoadInto(inner)
	if err != nil {
		return nil, err
	}
	s := &PersistentStore{Store: inner, persister: persister}
	if n == 0 {
		log.Printf("registry empty, seeding %d default ports", len(DefaultPorts()))
		if err := Seed(s, DefaultPorts()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PersistentStore) UpsertPort(port models.Port) error {
	if err := s.Store.UpsertPort(port); err != nil {
		return err
	}
	stored, err := s.Store.Port(port.ID)
	if err != nil {
		return err
	}
	if err := s.persister.SavePort(stored); err != nil {
		log.Printf("registry persist port=%s failed: %v", port.ID, err)
	}
	return nil
}

func (s *PersistentStore) ApplyTraffic(snap models.TrafficSnapshot) (bool, error) {
	applied, err := s.Store.ApplyTraffic(snap)
	if err != nil || !applied {
		return applied, err
	}
	stored, err := s.Store.Port(snap.PortID)
	if err != nil {
		return true, err
	}
	if err := s.persister.SavePort(stored); err != nil {
		log.Printf("registry persist port=%s failed: %v", snap.PortID, err)
	}
	return true, nil
}

func (s *PersistentStore) UpsertRoute(route models.Route) error {
	if err := s.Store.UpsertRoute(route); err != nil {
		return err
	}
	if route.ID == "" {
		route.ID = models.RouteID(route.OriginPortID, route.DestinationPortID)
	}
	stored, err := s.Store.Route(route.ID)
	if err != nil {
		return err
	}
	if err := s.persister.SaveRoute(stored); err != nil {
		log.Printf("registry persist route=%s failed: %v", route.ID, err)
	}
	return nil
}

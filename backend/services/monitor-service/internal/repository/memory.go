package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
)

// MemoryStore keeps sensors, datapoints, rules and users in process memory.
// It honours the same contracts as the Postgres repositories, including the
// cascade on sensor delete, and backs the "memory" database driver and tests.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	nextID     int64
	sensors    map[int64]models.Sensor
	datapoints map[int64][]models.Datapoint
	alerts     map[int64]models.AlertRule
	users      map[int64]models.User
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        func() time.Time { return time.Now().UTC() },
		sensors:    make(map[int64]models.Sensor),
		datapoints: make(map[int64][]models.Datapoint),
		alerts:     make(map[int64]models.AlertRule),
		users:      make(map[int64]models.User),
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// Sensors returns the sensor repository view of the store.
func (m *MemoryStore) Sensors() *MemorySensors { return &MemorySensors{m} }

// Datapoints returns the datapoint repository view of the store.
func (m *MemoryStore) Datapoints() *MemoryDatapoints { return &MemoryDatapoints{m} }

// Alerts returns the alert rule repository view of the store.
func (m *MemoryStore) Alerts() *MemoryAlerts { return &MemoryAlerts{m} }

// Users returns the user repository view of the store.
func (m *MemoryStore) Users() *MemoryUsers { return &MemoryUsers{m} }

// MemorySensors implements the sensor repository over a MemoryStore.
type MemorySensors struct{ m *MemoryStore }

func (r *MemorySensors) List(ctx context.Context) ([]models.Sensor, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := make([]models.Sensor, 0, len(r.m.sensors))
	for _, s := range r.m.sensors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemorySensors) GetByID(ctx context.Context, id int64) (*models.Sensor, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	s, ok := r.m.sensors[id]
	if !ok {
		return nil, ErrSensorNotFound
	}
	return &s, nil
}

func (r *MemorySensors) Create(ctx context.Context, s *models.Sensor) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	now := r.m.now()
	s.ID = r.m.id()
	s.CreatedAt, s.UpdatedAt = now, now
	r.m.sensors[s.ID] = *s
	return nil
}

func (r *MemorySensors) Update(ctx context.Context, s *models.Sensor) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	current, ok := r.m.sensors[s.ID]
	if !ok {
		return ErrSensorNotFound
	}
	s.CreatedAt = current.CreatedAt
	s.UpdatedAt = r.m.now()
	r.m.sensors[s.ID] = *s
	return nil
}

func (r *MemorySensors) Delete(ctx context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.sensors[id]; !ok {
		return ErrSensorNotFound
	}
	delete(r.m.sensors, id)
	delete(r.m.datapoints, id)
	for ruleID, rule := range r.m.alerts {
		if rule.SensorID == id {
			delete(r.m.alerts, ruleID)
		}
	}
	return nil
}

// MemoryDatapoints implements the datapoint repository over a MemoryStore.
type MemoryDatapoints struct{ m *MemoryStore }

func (r *MemoryDatapoints) Create(ctx context.Context, dp *models.Datapoint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.sensors[dp.SensorID]; !ok {
		return ErrSensorNotFound
	}
	dp.ID = r.m.id()
	r.m.datapoints[dp.SensorID] = append(r.m.datapoints[dp.SensorID], *dp)
	return nil
}

func (r *MemoryDatapoints) ListBySensor(ctx context.Context, sensorID int64, rng DatapointRange) ([]models.Datapoint, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := make([]models.Datapoint, 0)
	for _, dp := range r.m.datapoints[sensorID] {
		if !rng.From.IsZero() && dp.Timestamp.Before(rng.From) {
			continue
		}
		if !rng.To.IsZero() && dp.Timestamp.After(rng.To) {
			continue
		}
		out = append(out, dp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if rng.Limit > 0 && len(out) > rng.Limit {
		out = out[:rng.Limit]
	}
	return out, nil
}

// Count returns how many datapoints are stored for sensorID.
func (r *MemoryDatapoints) Count(sensorID int64) int {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return len(r.m.datapoints[sensorID])
}

// MemoryAlerts implements the alert rule repository over a MemoryStore.
type MemoryAlerts struct{ m *MemoryStore }

func (r *MemoryAlerts) List(ctx context.Context, filter AlertFilter) ([]models.AlertRuleView, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := make([]models.AlertRuleView, 0)
	for _, rule := range r.m.alerts {
		if filter.SensorID > 0 && rule.SensorID != filter.SensorID {
			continue
		}
		view := models.AlertRuleView{AlertRule: rule}
		if s, ok := r.m.sensors[rule.SensorID]; ok {
			summary := s.Summary()
			view.Sensor = &summary
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryAlerts) ListEnabledBySensor(ctx context.Context, sensorID int64) ([]models.AlertRule, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := make([]models.AlertRule, 0)
	for _, rule := range r.m.alerts {
		if rule.SensorID == sensorID && rule.Enabled {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryAlerts) GetByID(ctx context.Context, id int64) (*models.AlertRule, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	rule, ok := r.m.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	return &rule, nil
}

func (r *MemoryAlerts) Create(ctx context.Context, a *models.AlertRule) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.sensors[a.SensorID]; !ok {
		return ErrSensorNotFound
	}
	now := r.m.now()
	a.ID = r.m.id()
	a.CreatedAt, a.UpdatedAt = now, now
	r.m.alerts[a.ID] = *a
	return nil
}

func (r *MemoryAlerts) Update(ctx context.Context, a *models.AlertRule) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	current, ok := r.m.alerts[a.ID]
	if !ok {
		return ErrAlertNotFound
	}
	if _, ok := r.m.sensors[a.SensorID]; !ok {
		return ErrSensorNotFound
	}
	a.CreatedAt = current.CreatedAt
	a.UpdatedAt = r.m.now()
	r.m.alerts[a.ID] = *a
	return nil
}

func (r *MemoryAlerts) Delete(ctx context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.alerts[id]; !ok {
		return ErrAlertNotFound
	}
	delete(r.m.alerts, id)
	return nil
}

// MemoryUsers implements the user repository over a MemoryStore.
type MemoryUsers struct{ m *MemoryStore }

func (r *MemoryUsers) Create(ctx context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	user.Username = strings.TrimSpace(user.Username)
	for _, existing := range r.m.users {
		if existing.Username == user.Username {
			return ErrUsernameTaken
		}
	}
	user.ID = r.m.id()
	user.CreatedAt = r.m.now()
	r.m.users[user.ID] = *user
	return nil
}

func (r *MemoryUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	username = strings.TrimSpace(username)
	for _, u := range r.m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	u, ok := r.m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/client"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/live"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
)

const (
	DefaultInfoTTL  = 3 * time.Second
	DefaultAlertTTL = 5 * time.Second

	notificationTitle = "Industrial Monitor Alert"
)

// Source opens the live channel.
type Source interface {
	Events(ctx context.Context) (*client.Stream, error)
}

// Loader fetches the REST view of a sensor's readings.
type Loader interface {
	Datapoints(ctx context.Context, sensorID int64, from, to time.Time) (*models.Sensor, []models.DatapointView, error)
}

// ToastKind orders in-app notifications; alerts outrank info.
type ToastKind string

const (
	ToastInfo  ToastKind = "info"
	ToastAlert ToastKind = "alert"
)

// Toast is a transient in-app notification.
type Toast struct {
	Kind      ToastKind
	Message   string
	ExpiresAt time.Time
}

// State is a snapshot of everything a view renders.
type State struct {
	Connected     bool
	LastDatapoint *live.DatapointCreated
	LastAlert     *live.AlertTriggered
	Sensor        *models.Sensor
	Datapoints    []models.DatapointView
	Toast         *Toast
}

// Options configures a Reconciler. Zero values select defaults.
type Options struct {
	// SensorID selects the sensor whose readings are kept in State.Datapoints.
	// Zero watches no sensor.
	SensorID int64
	InfoTTL  time.Duration
	AlertTTL time.Duration
	Notifier Notifier
	// OnChange is called after every applied event with a fresh snapshot.
	OnChange func(State)
	Now      func() time.Time
}

type permission int

const (
	permissionUnknown permission = iota
	permissionGranted
	permissionDenied
)

// Reconciler merges live events into REST-fetched state and raises
// notifications for them.
type Reconciler struct {
	source Source
	loader Loader
	opts   Options
	logger *zap.Logger

	mu            sync.Mutex
	connected     bool
	lastDatapoint *live.DatapointCreated
	lastAlert     *live.AlertTriggered
	sensor        *models.Sensor
	datapoints    []models.DatapointView
	toast         *Toast
	permission    permission
	cancel        context.CancelFunc
	stream        *client.Stream
}

// New builds a Reconciler. loader may be nil when no sensor is watched.
func New(source Source, loader Loader, opts Options, logger *zap.Logger) *Reconciler {
	if opts.InfoTTL <= 0 {
		opts.InfoTTL = DefaultInfoTTL
	}
	if opts.AlertTTL <= 0 {
		opts.AlertTTL = DefaultAlertTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{
		source: source,
		loader: loader,
		opts:   opts,
		logger: logger.Named("reconciler"),
	}
}

// Run loads the watched sensor, subscribes and applies events until ctx is
// cancelled, Close is called or the stream fails. Every Run starts from an
// empty event state.
func (r *Reconciler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return errors.New("reconciler: already running")
	}
	r.cancel = cancel
	r.connected = false
	r.lastDatapoint = nil
	r.lastAlert = nil
	r.toast = nil
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.stream = nil
		r.connected = false
		r.mu.Unlock()
	}()

	if r.opts.SensorID != 0 && r.loader != nil {
		sensor, points, err := r.loader.Datapoints(ctx, r.opts.SensorID, time.Time{}, time.Time{})
		if err != nil {
			return fmt.Errorf("load sensor %d: %w", r.opts.SensorID, err)
		}
		r.mu.Lock()
		r.sensor = sensor
		r.datapoints = points
		r.mu.Unlock()
	}

	if r.opts.Notifier != nil {
		go r.requestPermission(ctx)
	}

	stream, err := r.source.Events(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe: %w", err)
	}
	r.mu.Lock()
	r.stream = stream
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		stream.Close()
	}()

	for {
		ev, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read live channel: %w", err)
		}
		r.apply(ev, stream.Connected())
	}
}

// Close tears the subscription down. A later Run starts a fresh one.
func (r *Reconciler) Close() {
	r.mu.Lock()
	cancel, stream := r.cancel, r.stream
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		stream.Close()
	}
}

// State returns a snapshot. An expired toast is omitted.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Reconciler) snapshotLocked() State {
	st := State{
		Connected:     r.connected,
		LastDatapoint: r.lastDatapoint,
		LastAlert:     r.lastAlert,
		Sensor:        r.sensor,
		Datapoints:    append([]models.DatapointView(nil), r.datapoints...),
	}
	if t := r.activeToastLocked(); t != nil {
		cp := *t
		st.Toast = &cp
	}
	return st
}

func (r *Reconciler) activeToastLocked() *Toast {
	if r.toast == nil || !r.opts.Now().Before(r.toast.ExpiresAt) {
		return nil
	}
	return r.toast
}

func (r *Reconciler) apply(ev client.Event, connected bool) {
	var (
		mirror string
		err    error
	)

	r.mu.Lock()
	r.connected = connected
	switch live.EventType(ev.Type) {
	case live.EventDatapointCreated:
		err = r.applyDatapointLocked(ev.Data)
	case live.EventAlertTriggered:
		mirror, err = r.applyAlertLocked(ev.Data)
	default:
		r.mu.Unlock()
		return
	}
	st := r.snapshotLocked()
	r.mu.Unlock()

	if err != nil {
		r.logger.Debug("ignoring malformed event", zap.String("event", ev.Type), zap.Error(err))
		return
	}
	if mirror != "" {
		r.mirror(mirror)
	}
	if r.opts.OnChange != nil {
		r.opts.OnChange(st)
	}
}

func (r *Reconciler) applyDatapointLocked(raw []byte) error {
	var payload live.DatapointCreated
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	r.lastDatapoint = &payload

	if r.opts.SensorID != 0 && payload.Datapoint.SensorID == r.opts.SensorID && !r.hasDatapointLocked(payload.Datapoint.ID) {
		r.insertDatapointLocked(payload.Datapoint)
	}

	if r.activeToastLocked() != nil && r.toast.Kind == ToastAlert {
		return nil
	}
	r.toast = &Toast{
		Kind:      ToastInfo,
		Message:   InfoMessage(payload.Sensor),
		ExpiresAt: r.opts.Now().Add(r.opts.InfoTTL),
	}
	return nil
}

func (r *Reconciler) applyAlertLocked(raw []byte) (string, error) {
	var payload live.AlertTriggered
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", err
	}
	r.lastAlert = &payload

	for i := range r.datapoints {
		dp := &r.datapoints[i]
		if dp.ID != payload.Datapoint.ID || dp.IsAlert {
			continue
		}
		threshold := payload.Alert.Value
		dp.IsAlert = true
		dp.AlertValue = &threshold
	}

	message := AlertMessage(payload.Sensor, payload.Alert)
	r.toast = &Toast{
		Kind:      ToastAlert,
		Message:   message,
		ExpiresAt: r.opts.Now().Add(r.opts.AlertTTL),
	}
	if r.permission != permissionGranted {
		return "", nil
	}
	return message, nil
}

// insertDatapointLocked keeps the watched list newest first, ordered the way
// the datapoint listing orders it: by timestamp, then by id.
func (r *Reconciler) insertDatapointLocked(dp models.Datapoint) {
	i := sort.Search(len(r.datapoints), func(i int) bool {
		cur := r.datapoints[i]
		if cur.Timestamp.Equal(dp.Timestamp) {
			return cur.ID < dp.ID
		}
		return cur.Timestamp.Before(dp.Timestamp)
	})
	r.datapoints = append(r.datapoints, models.DatapointView{})
	copy(r.datapoints[i+1:], r.datapoints[i:])
	r.datapoints[i] = models.DatapointView{Datapoint: dp}
}

func (r *Reconciler) hasDatapointLocked(id int64) bool {
	for _, dp := range r.datapoints {
		if dp.ID == id {
			return true
		}
	}
	return false
}

func (r *Reconciler) requestPermission(ctx context.Context) {
	granted, err := r.opts.Notifier.RequestPermission(ctx)
	if err != nil {
		r.logger.Debug("notification permission unavailable", zap.Error(err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if granted {
		r.permission = permissionGranted
	} else {
		r.permission = permissionDenied
	}
}

func (r *Reconciler) mirror(message string) {
	if err := r.opts.Notifier.Notify(notificationTitle, message); err != nil {
		r.logger.Warn("os notification failed", zap.Error(err))
	}
}

// InfoMessage is the toast text for a new reading.
func InfoMessage(sensor models.Sensor) string {
	alias := sensor.Alias
	if alias == "" {
		alias = "sensor"
	}
	return "New data received for " + alias
}

// AlertMessage is the toast and OS notification text for a tripped rule.
func AlertMessage(sensor models.Sensor, rule models.AlertRule) string {
	alias := sensor.Alias
	if alias == "" {
		alias = "Sensor"
	}
	detail := rule.Description
	if detail == "" {
		detail = fmt.Sprintf("Value %s %s", rule.Condition, strconv.FormatFloat(rule.Value, 'f', -1, 64))
	}
	return fmt.Sprintf("Alert: %s - %s", alias, detail)
}

package monument

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"

	"monumentwars/internal/match/bus"
	"monumentwars/internal/match/player"
	"monumentwars/internal/match/region"
	"monumentwars/internal/match/team"
)

// OwnBreakNotice is sent to a player who breaks a monument their team owns.
const OwnBreakNotice = "You cannot damage a monument you own."

var ErrAlreadyLoaded = errors.New("monument already loaded")

// Actor is the player responsible for a damage or destroy transition.
type Actor struct {
	ID   string
	Name string
	Team *team.Team
}

// Service reacts to monument transitions. Reactions run in registration
// order; an error or panic in one does not stop the others.
type Service interface {
	OnDamage(actor Actor, at region.Vec3) error
	OnDestroy(actor Actor, at region.Vec3) error
}

// ServiceFuncs adapts a pair of closures to Service. Nil funcs are skipped.
type ServiceFuncs struct {
	Damage  func(actor Actor, at region.Vec3) error
	Destroy func(actor Actor, at region.Vec3) error
}

func (f ServiceFuncs) OnDamage(actor Actor, at region.Vec3) error {
	if f.Damage == nil {
		return nil
	}
	return f.Damage(actor, at)
}

func (f ServiceFuncs) OnDestroy(actor Actor, at region.Vec3) error {
	if f.Destroy == nil {
		return nil
	}
	return f.Destroy(actor, at)
}

type Monument struct {
	name      string
	owners    []*team.Team
	region    region.Region
	materials map[string]bool
	matList   []string
	maxHealth int

	log *log.Logger

	mu       sync.Mutex
	health   int
	alive    bool
	services []Service
	binding  *bus.Group
}

// New builds a live monument. health may be below maxHealth for monuments
// that start pre-damaged.
func New(name string, owners []*team.Team, reg region.Region, materials []string, health, maxHealth int) (*Monument, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("monument name must not be empty")
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("monument %s: owners must not be empty", name)
	}
	for _, o := range owners {
		if o == nil {
			return nil, fmt.Errorf("monument %s: nil owner", name)
		}
		if o.Spectator {
			return nil, fmt.Errorf("monument %s: spectator team %s cannot own a monument", name, o.ID)
		}
	}
	if reg == nil {
		return nil, fmt.Errorf("monument %s: region must not be nil", name)
	}
	if maxHealth <= 0 {
		return nil, fmt.Errorf("monument %s: max health must be > 0", name)
	}
	if health <= 0 || health > maxHealth {
		return nil, fmt.Errorf("monument %s: health must be in [1, %d]", name, maxHealth)
	}
	m := &Monument{
		name:      name,
		owners:    append([]*team.Team(nil), owners...),
		region:    reg,
		materials: map[string]bool{},
		maxHealth: maxHealth,
		health:    health,
		alive:     true,
	}
	for _, mat := range materials {
		key := normalizeMaterial(mat)
		if key == "" || m.materials[key] {
			continue
		}
		m.materials[key] = true
		m.matList = append(m.matList, key)
	}
	return m, nil
}

func (m *Monument) SetLogger(l *log.Logger) { m.log = l }

func (m *Monument) Name() string          { return m.name }
func (m *Monument) Region() region.Region { return m.region }
func (m *Monument) MaxHealth() int        { return m.maxHealth }

// Owners returns the owning teams; the first owner is used for messaging.
func (m *Monument) Owners() []*team.Team { return append([]*team.Team(nil), m.owners...) }

func (m *Monument) PrimaryOwner() *team.Team { return m.owners[0] }

func (m *Monument) IsOwner(t *team.Team) bool {
	if t == nil {
		return false
	}
	for _, o := range m.owners {
		if o == t || o.ID == t.ID {
			return true
		}
	}
	return false
}

func (m *Monument) Materials() []string { return append([]string(nil), m.matList...) }

func (m *Monument) HasMaterial(mat string) bool { return m.materials[normalizeMaterial(mat)] }

func (m *Monument) Health() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

func (m *Monument) Alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alive
}

// HealthPercentage is round(100*health/maxHealth), and 0 once destroyed.
func (m *Monument) HealthPercentage() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.percentageLocked()
}

func (m *Monument) percentageLocked() int {
	if !m.alive {
		return 0
	}
	pct := int(math.Round(100 * float64(m.health) / float64(m.maxHealth)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func (m *Monument) AddService(s Service) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, s)
}

// Damage lowers health by amount and runs the damage reactions. When health
// reaches zero the monument is marked destroyed before any reaction runs, so
// the damage reactions already observe it dead, and the destroy reactions
// follow them. It reports whether the call changed state; calls on a
// destroyed monument do nothing.
func (m *Monument) Damage(actor Actor, at region.Vec3, amount int) bool {
	if amount <= 0 {
		return false
	}
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return false
	}
	m.health -= amount
	destroyed := false
	if m.health <= 0 {
		m.health = 0
		m.alive = false
		destroyed = true
	}
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	m.fire(services, "damage", func(s Service) error { return s.OnDamage(actor, at) })
	if destroyed {
		m.fire(services, "destroy", func(s Service) error { return s.OnDestroy(actor, at) })
	}
	return true
}

// Destroy forces destruction regardless of health. It reports false when the
// monument was already destroyed.
func (m *Monument) Destroy(actor Actor, at region.Vec3) bool {
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return false
	}
	m.alive = false
	m.health = 0
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	m.fire(services, "destroy", func(s Service) error { return s.OnDestroy(actor, at) })
	return true
}

func (m *Monument) fire(services []Service, what string, call func(Service) error) {
	for i, s := range services {
		if err := safeCall(s, call); err != nil && m.log != nil {
			m.log.Printf("monument %s: %s service %d: %v", m.name, what, i, err)
		}
	}
}

func safeCall(s Service, call func(Service) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return call(s)
}

// Load binds the monument to the live world: breaking one of its materials
// inside its region damages it by one.
func (m *Monument) Load(b *bus.Bus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.binding != nil {
		return ErrAlreadyLoaded
	}
	g := b.NewGroup()
	g.Subscribe(player.TopicBlockBreak, func(ev bus.Event) {
		if e, ok := ev.(*player.BlockBreakEvent); ok {
			m.onBlockBreak(e)
		}
	})
	m.binding = g
	return nil
}

// Unload releases the world binding. Safe to call when not loaded.
func (m *Monument) Unload() {
	m.mu.Lock()
	g := m.binding
	m.binding = nil
	m.mu.Unlock()
	g.Close()
}

func (m *Monument) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.binding != nil
}

func (m *Monument) onBlockBreak(e *player.BlockBreakEvent) {
	if e.Cancelled() || !m.region.Contains(e.Pos) || !m.HasMaterial(e.Material) {
		return
	}
	if !m.Alive() {
		return
	}
	if e.Team == nil || e.Team.Spectator {
		e.Cancel("")
		return
	}
	if m.IsOwner(e.Team) {
		e.Cancel(OwnBreakNotice)
		return
	}
	m.Damage(Actor{ID: e.Player.ID, Name: e.Player.Name, Team: e.Team}, e.Pos, 1)
}

// State is a point-in-time view of a monument.
type State struct {
	Name       string   `json:"name"`
	Owners     []string `json:"owners"`
	Health     int      `json:"health"`
	MaxHealth  int      `json:"max_health"`
	Percentage int      `json:"percentage"`
	Alive      bool     `json:"alive"`
}

func (m *Monument) State() State {
	owners := make([]string, 0, len(m.owners))
	for _, o := range m.owners {
		owners = append(owners, o.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Name:       m.name,
		Owners:     owners,
		Health:     m.health,
		MaxHealth:  m.maxHealth,
		Percentage: m.percentageLocked(),
		Alive:      m.alive,
	}
}

func normalizeMaterial(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"mealsub/internal/domain"
	"mealsub/internal/pkg/validator"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

// ConfigStore is the persisted source of gateway definitions.
type ConfigStore interface {
	ListActive(ctx context.Context) ([]domain.PaymentGatewayConfig, error)
}

// Loader builds a Registry from the store, falling back to static
// definitions when the store yields nothing usable.
type Loader struct {
	store       ConfigStore
	static      []domain.PaymentGatewayConfig
	defaultName string
	client      *http.Client
	log         *logrus.Entry
}

func NewLoader(store ConfigStore, static []domain.PaymentGatewayConfig, defaultName string, client *http.Client, log *logrus.Entry) *Loader {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Loader{
		store:       store,
		static:      static,
		defaultName: strings.ToLower(strings.TrimSpace(defaultName)),
		client:      client,
		log:         log.WithField("component", "gateway_registry"),
	}
}

func (l *Loader) Load(ctx context.Context) (*Registry, error) {
	var rows []domain.PaymentGatewayConfig
	if l.store != nil {
		var err error
		rows, err = l.store.ListActive(ctx)
		if err != nil {
			l.log.WithError(err).Warn("gateway config store unavailable, using static definitions")
			rows = nil
		}
	}

	reg := l.build(rows, "store")
	if len(reg.order) == 0 {
		reg = l.build(l.static, "static")
	}
	if len(reg.order) == 0 {
		return nil, ErrNoActiveGateway
	}

	reg.active = reg.order[0]
	if l.defaultName != "" {
		if _, ok := reg.gateways[l.defaultName]; ok {
			reg.active = l.defaultName
		} else {
			l.log.WithField("gateway", l.defaultName).Warn("default gateway not loaded, using first available")
		}
	}
	l.log.WithFields(logrus.Fields{"active": reg.active, "available": reg.order, "source": reg.source}).Info("payment gateways loaded")
	return reg, nil
}

func (l *Loader) build(defs []domain.PaymentGatewayConfig, source string) *Registry {
	reg := &Registry{gateways: map[string]Gateway{}, source: source}
	for _, def := range defs {
		if !def.IsActive {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(def.Name))
		if _, dup := reg.gateways[name]; dup {
			continue
		}
		gw, err := Build(def, l.client)
		if err != nil {
			entry := l.log.WithFields(logrus.Fields{"gateway": name, "source": source})
			if mc, ok := err.(*MissingCredentialsError); ok {
				entry = entry.WithField("missing", mc.Fields)
			}
			entry.WithError(err).Warn("skipping gateway")
			continue
		}
		reg.gateways[name] = gw
		reg.order = append(reg.order, name)
	}
	return reg
}

// Build constructs the adapter for one definition. Every required credential
// must be present and non-blank.
func Build(def domain.PaymentGatewayConfig, client *http.Client) (Gateway, error) {
	name := strings.ToLower(strings.TrimSpace(def.Name))
	switch name {
	case domain.GatewayStripe:
		var c StripeCredentials
		if err := decodeCredentials(name, def.Credentials, &c); err != nil {
			return nil, err
		}
		return NewStripe(c, client), nil
	case domain.GatewayPayPal:
		var c PayPalCredentials
		if err := decodeCredentials(name, def.Credentials, &c); err != nil {
			return nil, err
		}
		return NewPayPal(c, def.Mode, client), nil
	case domain.GatewayThawani:
		var c ThawaniCredentials
		if err := decodeCredentials(name, def.Credentials, &c); err != nil {
			return nil, err
		}
		return NewThawani(c, def.Mode, client), nil
	case domain.GatewayMock:
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, def.Name)
	}
}

func decodeCredentials(name string, in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       trimStrings,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("%s credentials: %w", name, err)
	}
	if errs := validator.Validate(out); errs != nil {
		fields := make([]string, 0, len(errs))
		for f := range errs {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		return &MissingCredentialsError{Gateway: name, Fields: fields}
	}
	return nil
}

func trimStrings(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if s, ok := data.(string); ok && to.Kind() == reflect.String {
		return strings.TrimSpace(s), nil
	}
	return data, nil
}

// Registry is the immutable set of loaded gateways.
type Registry struct {
	gateways map[string]Gateway
	order    []string
	active   string
	source   string
}

// NewRegistry wraps already built gateways; the first one is active.
func NewRegistry(gateways ...Gateway) (*Registry, error) {
	if len(gateways) == 0 {
		return nil, ErrNoActiveGateway
	}
	reg := &Registry{gateways: map[string]Gateway{}, source: "explicit"}
	for _, g := range gateways {
		if _, dup := reg.gateways[g.Name()]; dup {
			continue
		}
		reg.gateways[g.Name()] = g
		reg.order = append(reg.order, g.Name())
	}
	reg.active = reg.order[0]
	return reg, nil
}

func (r *Registry) ActiveName() string { return r.active }

func (r *Registry) Active() Gateway { return r.gateways[r.active] }

// Available lists loaded gateway names in load order.
func (r *Registry) Available() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Source() string { return r.source }

func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGatewayNotLoaded, name)
	}
	return g, nil
}

// WithActive returns a copy of the registry with a different active gateway.
func (r *Registry) WithActive(name string) (*Registry, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := r.gateways[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrGatewayNotLoaded, name)
	}
	cp := &Registry{gateways: make(map[string]Gateway, len(r.gateways)), order: r.Available(), active: name, source: r.source}
	for k, v := range r.gateways {
		cp.gateways[k] = v
	}
	return cp, nil
}

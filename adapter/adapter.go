package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/fpgabridge/golink"
)

// Adapter bundles the two planes of one physical interconnect: the
// register-addressed control bus and the buffered streaming bus with its
// framing line.
type Adapter interface {
	Name() string
	Open(context.Context) error
	Close() error
	Control() golink.ControlBus
	Stream() golink.StreamBus
	Framing() golink.FramingLine
}

// Config is shared adapter configuration.
type Config struct {
	Port      string
	Baudrate  int
	BusAddr   uint8
	Debug     bool
	OnMessage func(string)
}

const (
	Loopbk AdapterID = iota
	SerialBr
)

type AdapterID int

type NewAdapterFunc func(*Config) (Adapter, error)

type AdapterItem struct {
	ID    AdapterID
	New   NewAdapterFunc
	Name  string
	Alias []string
}

var adapterList = []AdapterItem{
	{
		ID:    Loopbk,
		New:   newLoopbackAdapter,
		Name:  "Loopback",
		Alias: []string{"loop", "virtual"},
	},
	{
		ID:    SerialBr,
		New:   newBridgeAdapter,
		Name:  "SerialBridge",
		Alias: []string{"bridge", "uart"},
	},
}

func ListAdapters() []AdapterItem {
	return adapterList
}

func ListAdapterStrings() []string {
	var out []string
	for _, a := range adapterList {
		out = append(out, a.Name)
	}
	return out
}

func New(adapter interface{}, cfg *Config) (Adapter, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	switch t := adapter.(type) {
	case string:
		normalized := strings.ToLower(t)
		for _, a := range adapterList {
			if strings.ToLower(a.Name) == normalized {
				return a.New(cfg)
			}
			for _, alias := range a.Alias {
				if normalized == strings.ToLower(alias) {
					return a.New(cfg)
				}
			}
		}
	case AdapterID:
		for _, a := range adapterList {
			if t == a.ID {
				return a.New(cfg)
			}
		}
	case int:
		return New(AdapterID(t), cfg)
	default:
		return nil, fmt.Errorf("invalid type %t", t)
	}
	return nil, fmt.Errorf("unknown adapter %q", adapter)
}

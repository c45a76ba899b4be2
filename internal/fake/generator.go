// Package fake provides utilities for generating random server registrations for testing and development purposes.
package fake

import (
	"fmt"
	"math/rand/v2"
	"net/netip"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/hltracker/internal/macroman"
	"github.com/woozymasta/hltracker/internal/protocol"
)

var (
	prefixes     = []string{"The", "Classic", "Retro", "Mac", "Underground", "Midnight", "Pixel"}
	topics       = []string{"Hotline", "Archive", "BBS", "Lounge", "Warez", "Café", "Files", "Chat"}
	descriptions = []string{
		"Files, news and chat",
		"Classic Mac software archive",
		"Be nice. No leeching.",
		"Resources for System 7 and Mac OS 9",
		"Open 24/7 • guests welcome",
		"",
	}
	ports = []uint16{protocol.DefaultServerPort, 5500, 5500, 5600, 5900, 6500}
)

// Generator produces random but plausible registrations.
type Generator struct {
	rng *rand.Rand
}

// New returns a generator seeded with seed, so runs are reproducible.
func New(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Registration returns a random version 1 registration without a password.
func (g *Generator) Registration() protocol.RegistrationRecord {
	r := protocol.DefaultRegistration()
	r.ID = g.rng.Uint32()
	r.Port = ports[g.rng.IntN(len(ports))]
	r.UsersOnline = uint16(g.rng.IntN(60))
	r.Name = macroman.FromString(fmt.Sprintf("%s %s #%d",
		prefixes[g.rng.IntN(len(prefixes))], topics[g.rng.IntN(len(topics))], g.rng.IntN(1000)))
	r.Description = macroman.FromString(descriptions[g.rng.IntN(len(descriptions))])
	return r
}

// Addr returns a random public-looking IPv4 address.
func (g *Generator) Addr() netip.Addr {
	return netip.AddrFrom4([4]byte{
		byte(g.rng.IntN(220) + 1),
		byte(g.rng.IntN(255)),
		byte(g.rng.IntN(255)),
		byte(g.rng.IntN(254) + 1),
	})
}

// Registrar accepts registrations; *registry.Registry satisfies it.
type Registrar interface {
	Register(addr netip.Addr, rec protocol.RegistrationRecord)
}

// Populate registers count random servers with r.
func (g *Generator) Populate(r Registrar, count int) {
	for range count {
		r.Register(g.Addr(), g.Registration())
	}

	log.Info().Int("count", count).Msg("Registered fake servers")
}

package service

import (
	"encoding/binary"
	"slices"

	"github.com/spaolacci/murmur3"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
)

// JourneyKey hashes what makes two journeys equivalent: arrival,
// departure, number of transfers and the set of vehicle journeys used.
func JourneyKey(j domain.Journey) uint64 {
	h := murmur3.New64()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(j.Arrival.Unix()))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(j.Departure.Unix()))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(j.NbTransfers))
	_, _ = h.Write(buf[:])
	for _, vj := range j.VehicleJourneys() {
		_, _ = h.Write([]byte(vj))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// sameJourney reports whether a and b are equivalent in the JourneyKey sense.
func sameJourney(a, b domain.Journey) bool {
	return a.Arrival.Unix() == b.Arrival.Unix() &&
		a.Departure.Unix() == b.Departure.Unix() &&
		a.NbTransfers == b.NbTransfers &&
		slices.Equal(a.VehicleJourneys(), b.VehicleJourneys())
}

// journeySet keeps journeys in insertion order without duplicates. Journeys
// are bucketed by key and compared field by field inside a bucket.
type journeySet struct {
	key  func(domain.Journey) uint64
	seen map[uint64][]int
	list []domain.Journey
}

func newJourneySet() *journeySet {
	return &journeySet{key: JourneyKey, seen: make(map[uint64][]int)}
}

// add inserts j unless an equivalent journey is present.
func (s *journeySet) add(j domain.Journey) bool {
	k := s.key(j)
	for _, i := range s.seen[k] {
		if sameJourney(s.list[i], j) {
			return false
		}
	}
	s.seen[k] = append(s.seen[k], len(s.list))
	s.list = append(s.list, j)
	return true
}

func (s *journeySet) len() int { return len(s.list) }

package snowflake

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_SnowflakeIDUniqueness(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("all generated IDs are unique", prop.ForAll(
		func(count int) bool {
			g, err := NewGenerator(Config{})
			if err != nil {
				return false
			}

			ids := make(map[int64]bool)
			for range count {
				id, err := g.NextID()
				if err != nil {
					return false
				}
				if ids[id] {
					return false
				}
				ids[id] = true
			}

			return len(ids) == count
		},
		gen.IntRange(100, 1000),
	))

	properties.Property("IDs generated in sequence are strictly ordered", prop.ForAll(
		func(count int) bool {
			g, err := NewGenerator(Config{})
			if err != nil {
				return false
			}

			var prev int64 = -1
			for range count {
				id, err := g.NextID()
				if err != nil {
					return false
				}
				if id <= prev {
					return false
				}
				prev = id
			}
			return true
		},
		gen.IntRange(100, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

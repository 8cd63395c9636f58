package filters

import (
	"fmt"
	"time"

	"github.com/smartrestaurant/gateway/internal/config"
)

// Build assembles the chain of enabled filters from configuration.
func Build(cfg config.FiltersConfig) (*Chain, error) {
	var descriptors []Descriptor

	if cfg.Device.Enabled {
		descriptors = append(descriptors, DeviceTagger(cfg.Device.Order))
	}
	if cfg.Timing.Enabled {
		descriptors = append(descriptors, Timing(cfg.Timing.Order, time.Now))
	}
	if cfg.LastModified.Enabled {
		cond, err := ExprCondition(cfg.LastModified.When)
		if err != nil {
			return nil, fmt.Errorf("filters.last_modified.when: %w", err)
		}
		descriptors = append(descriptors, LastModified(cfg.LastModified.Order, cond, time.Now))
	}
	if cfg.Region.Enabled {
		descriptors = append(descriptors, Region(cfg.Region.Order, cfg.Region.Name))
	}

	return NewChain(descriptors...), nil
}

package filters

import "errors"

// HeaderServerRegion identifies the serving region/node.
const HeaderServerRegion = "X-Server-Region"

// Region stamps the configured region on every response.
func Region(order int, name string) Descriptor {
	return Descriptor{
		Name:  "region",
		Order: order,
		Phase: PhasePost,
		Action: func(ex *Exchange) error {
			if name == "" {
				return errors.New("region name not configured")
			}
			ex.ResponseHeader.Set(HeaderServerRegion, name)
			return nil
		},
	}
}

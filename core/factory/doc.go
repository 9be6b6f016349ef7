// Package factory provides a small generic registry used to build pluggable
// components (metric sinks, geocoders, journal backends) from configuration.
// A component is selected by a type string and configured by a map of raw
// settings that its factory decodes into a typed struct.
//
// Example usage:
//
//	reg := factory.NewRegistry[geocode.Geocoder]()
//	reg.Register("google", func(conf map[string]any) (geocode.Geocoder, error) {
//	    var c struct{ APIKey string `json:"api_key"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newGoogle(c.APIKey)
//	})
//	g, err := reg.Create(factory.ModuleConfig{Type: "google", Conf: map[string]any{"api_key": "k"}})
package factory

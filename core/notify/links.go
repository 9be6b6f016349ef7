package notify

import (
	"fmt"
	"net/url"
	"strconv"
)

// Link is a navigation deep link shown to the crew.
type Link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func formatCoord(f float64) string { return strconv.FormatFloat(f, 'f', 6, 64) }

// NavigationLinks returns route links to the destination. Coordinates take
// precedence; without them a text search on the address is offered. Nothing
// is returned when both are missing.
func NavigationLinks(lat, lon *float64, address string) []Link {
	if lat != nil && lon != nil {
		dst := formatCoord(*lat) + "," + formatCoord(*lon)
		return []Link{
			{Name: "Yandex Maps", URL: "https://yandex.ru/maps/?rtext=~" + dst},
			{Name: "Google Maps", URL: "https://www.google.com/maps/dir/?api=1&destination=" + dst},
		}
	}
	if address == "" {
		return nil
	}
	q := url.QueryEscape(address)
	return []Link{
		{Name: "Yandex Maps", URL: "https://yandex.ru/maps/?text=" + q},
		{Name: "Google Maps", URL: fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%s", q)},
	}
}

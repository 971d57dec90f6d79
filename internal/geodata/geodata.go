// Package geodata carries coordinates for the Site24x7 polling locations,
// for plotting monitor data on a map. The table is static and read-only.
package geodata

import (
	"encoding/json"
	"net/http"
)

// Location maps a Site24x7 location name to its coordinates.
type Location struct {
	Key       string  `json:"key"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
}

// Locations returns the geolocation table.
func Locations() []Location {
	return locations
}

// Handler serves the geolocation table as JSON with permissive CORS so
// dashboards on other origins can fetch it directly.
func Handler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	data, err := json.MarshalIndent(locations, "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}

var locations = []Location{
	{Key: "Amsterdam - NL", Name: "Amsterdam - NL", Latitude: 52.37403, Longitude: 4.88969},
	{Key: "Atlanta - US", Name: "Atlanta - US", Latitude: 33.749, Longitude: -84.38798},
	{Key: "Bangkok - TH", Name: "Bangkok - TH", Latitude: 13.75398, Longitude: 100.50144},
	{Key: "Barcelona - ES", Name: "Barcelona - ES", Latitude: 41.38879, Longitude: 2.15899},
	{Key: "Beijing - CHN", Name: "Beijing - CHN", Latitude: 39.918722, Longitude: 116.390186},
	{Key: "Chengdu - CHN", Name: "Chengdu - CHN", Latitude: 30.661116, Longitude: 104.068254},
	{Key: "Chennai - IN", Name: "Chennai - IN", Latitude: 13.08784, Longitude: 80.27847},
	{Key: "Chicago - US", Name: "Chicago - US", Latitude: 41.85003, Longitude: -87.65005},
	{Key: "Chongqing - CHN", Name: "Chongqing - CHN", Latitude: 29.558157, Longitude: 106.559216},
	{Key: "Copenhagen - DA", Name: "Copenhagen - DA", Latitude: 55.67594, Longitude: 12.56553},
	{Key: "Dubai - UAE", Name: "Dubai - UAE", Latitude: 25.0657, Longitude: 55.17128},
	{Key: "Falkenstein - DE", Name: "Falkenstein - DE", Latitude: 50.478056, Longitude: 12.335641},
	{Key: "Frankfurt - DE", Name: "Frankfurt - DE", Latitude: 50.11552, Longitude: 8.68417},
	{Key: "Guangzhou - CHN", Name: "Guangzhou - CHN", Latitude: 23.125833, Longitude: 113.259865},
	{Key: "Hong Kong - HK", Name: "Hong Kong - HK", Latitude: 22.324494, Longitude: 114.169539},
	{Key: "Houston - US", Name: "Houston - US", Latitude: 29.76328, Longitude: -95.36327},
	{Key: "Istanbul - TR", Name: "Istanbul - TR", Latitude: 41.01384, Longitude: 28.94966},
	{Key: "Johannesburg - ZA", Name: "Johannesburg - ZA", Latitude: -26.202477, Longitude: 28.047010},
	{Key: "London - UK", Name: "London - UK", Latitude: 51.500072, Longitude: -0.127108},
	{Key: "Los Angeles - US", Name: "Los Angeles - US", Latitude: 34.05223, Longitude: -118.24368},
	{Key: "Miami - US", Name: "Miami - US", Latitude: 25.77427, Longitude: -80.19366},
	{Key: "Moscow - RU", Name: "Moscow - RU", Latitude: 55.75222, Longitude: 37.61556},
	{Key: "Mumbai - IN", Name: "Mumbai - IN", Latitude: 19.07283, Longitude: 72.88261},
	{Key: "New York - US", Name: "New York - US", Latitude: 40.725351, Longitude: -73.998684},
	{Key: "Paris - FR", Name: "Paris - FR", Latitude: 48.85341, Longitude: 2.3488},
	{Key: "Rio de Janeiro - BR", Name: "Rio de Janeiro - BR", Latitude: -22.877932, Longitude: -43.317430},
	{Key: "Seattle - US", Name: "Seattle - US", Latitude: 47.604262, Longitude: -122.334683},
	{Key: "Shanghai - CHN", Name: "Shanghai - CHN", Latitude: 31.214492, Longitude: 121.481223},
	{Key: "Shenzhen - CHN", Name: "Shenzhen - CHN", Latitude: 22.546685, Longitude: 113.945502},
	{Key: "Singapore - SG", Name: "Singapore - SG", Latitude: 1.333914, Longitude: 103.844230},
	{Key: "Sydney - AUS", Name: "Sydney - AUS", Latitude: -33.886836, Longitude: 151.159892},
	{Key: "Taipei - TW", Name: "Taipei - TW", Latitude: 25.020797, Longitude: 121.464569},
	{Key: "Tokyo - JP", Name: "Tokyo - JP", Latitude: 35.6895, Longitude: 139.69171},
	{Key: "Vancouver - CA", Name: "Vancouver - CA", Latitude: 49.24966, Longitude: -123.11934},
}

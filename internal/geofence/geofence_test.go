package geofence_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"alzhcare-monitor/internal/geofence"
)

func newService(t *testing.T) (*geofence.Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "care_profile.yaml")
	return geofence.NewService(path, zap.NewNop()), path
}

func TestHaversineKnownDistance(t *testing.T) {
	svc, _ := newService(t)
	err := svc.Save(geofence.CareProfile{
		Locations: []geofence.NamedLocation{
			// Praça da Sé, São Paulo
			{ID: 1, Name: "Casa", Address: "Praça da Sé", Latitude: -23.5505, Longitude: -46.6333},
		},
		RadiusMeters: 200000,
	})
	require.NoError(t, err)

	// Paulista 大道，距 Sé 约 2.6km
	result := svc.CheckGeofence(-23.5614, -46.6558)
	assert.True(t, result.IsInGeofence)
	assert.InDelta(t, 2600, result.DistanceMeters, 200)
}

func TestCheckGeofenceInsideRadius(t *testing.T) {
	svc, _ := newService(t)
	err := svc.Save(geofence.CareProfile{
		Locations: []geofence.NamedLocation{
			{ID: 1, Name: "Casa", Address: "Rua A, 100", Latitude: -23.5505, Longitude: -46.6333},
		},
		RadiusMeters: 500,
	})
	require.NoError(t, err)

	// 约 150m 外
	result := svc.CheckGeofence(-23.5505, -46.6318)
	assert.True(t, result.IsInGeofence)
	assert.Equal(t, "Casa", result.LocationName)
	assert.Equal(t, "Rua A, 100", result.Address)
	assert.Less(t, result.DistanceMeters, 500.0)
}

func TestCheckGeofenceOutsideRadius(t *testing.T) {
	svc, _ := newService(t)
	err := svc.Save(geofence.CareProfile{
		Locations: []geofence.NamedLocation{
			{ID: 1, Name: "Casa", Latitude: -23.5505, Longitude: -46.6333},
		},
		RadiusMeters: 500,
	})
	require.NoError(t, err)

	// 约 2.6km 外
	result := svc.CheckGeofence(-23.5614, -46.6558)
	assert.False(t, result.IsInGeofence)
	assert.Empty(t, result.LocationName)
}

func TestCheckGeofenceSkipsUnconfiguredSlots(t *testing.T) {
	svc, _ := newService(t)

	// 默认档案：三个空槽位，(0,0) 坐标不得命中
	result := svc.CheckGeofence(0.0001, 0.0001)
	assert.False(t, result.IsInGeofence)
}

func TestProfileRoundTrip(t *testing.T) {
	svc, path := newService(t)

	saved := geofence.CareProfile{
		Carrier:        geofence.Carrier{Name: "Maria", Phone: "+55 11 99999-0000"},
		EmergencyPhone: "192",
		Locations: []geofence.NamedLocation{
			{ID: 1, Name: "Casa", Address: "Rua A", Latitude: -23.55, Longitude: -46.63},
			{ID: 2, Name: "Clínica", Address: "Av B", Latitude: -23.56, Longitude: -46.65},
		},
		RadiusMeters: 300,
	}
	require.NoError(t, svc.Save(saved))

	_, err := os.Stat(path)
	require.NoError(t, err)

	reloaded := geofence.NewService(path, zap.NewNop()).Profile()
	assert.Equal(t, saved, reloaded)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	svc, _ := newService(t)
	profile := svc.Profile()

	assert.Len(t, profile.Locations, 3)
	assert.Equal(t, float64(geofence.DefaultRadiusMeters), profile.RadiusMeters)
	assert.Empty(t, profile.Carrier.Name)
}

func TestLoadCorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "care_profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0o644))

	svc := geofence.NewService(path, zap.NewNop())
	assert.Equal(t, float64(geofence.DefaultRadiusMeters), svc.Profile().RadiusMeters)
}

func TestUpdateCarrier(t *testing.T) {
	svc, _ := newService(t)
	require.NoError(t, svc.UpdateCarrier("João", "+55 11 98888-0000"))

	profile := svc.Profile()
	assert.Equal(t, "João", profile.Carrier.Name)
	assert.Equal(t, "+55 11 98888-0000", profile.Carrier.Phone)
}

func TestUpdateEmergencyPhone(t *testing.T) {
	svc, _ := newService(t)
	require.NoError(t, svc.UpdateEmergencyPhone("192"))
	assert.Equal(t, "192", svc.Profile().EmergencyPhone)
}

func TestUpdateLocation(t *testing.T) {
	svc, _ := newService(t)
	loc := geofence.NamedLocation{Name: "Casa", Address: "Rua A", Latitude: -23.55, Longitude: -46.63}
	require.NoError(t, svc.UpdateLocation(2, loc))

	profile := svc.Profile()
	assert.Equal(t, "Casa", profile.Locations[1].Name)
	assert.Equal(t, 2, profile.Locations[1].ID)

	err := svc.UpdateLocation(9, loc)
	assert.Error(t, err)
}

func TestSaveTruncatesExtraLocations(t *testing.T) {
	svc, _ := newService(t)
	err := svc.Save(geofence.CareProfile{
		Locations: []geofence.NamedLocation{
			{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}, {ID: 4, Name: "D"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, svc.Profile().Locations, 3)
}

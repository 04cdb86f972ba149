package geofence

import (
	"fmt"
	"math"
	"os"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// 默认电子围栏半径（米）
// 历史上界面文案里还出现过 100m，这里统一采用配置默认值 500m
const DefaultRadiusMeters = 500

// 最多可配置的重要位置数
const MaxLocations = 3

// NamedLocation 命名的重要位置（家、日托中心等）
type NamedLocation struct {
	ID        int     `yaml:"id" json:"id"`
	Name      string  `yaml:"name" json:"name"`
	Address   string  `yaml:"address" json:"address"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

// Carrier 佩戴者信息
type Carrier struct {
	Name  string `yaml:"name" json:"name"`
	Phone string `yaml:"phone" json:"phone"`
}

// CareProfile 监护档案（外部协作者配置面）
type CareProfile struct {
	Carrier        Carrier         `yaml:"carrier" json:"carrier"`
	EmergencyPhone string          `yaml:"emergency_phone" json:"emergency_phone"`
	Locations      []NamedLocation `yaml:"locations" json:"locations"`
	RadiusMeters   float64         `yaml:"radius_meters" json:"radius_meters"`
}

// Result 围栏判定结果
type Result struct {
	IsInGeofence   bool    `json:"is_in_geofence"`
	LocationName   string  `json:"location_name,omitempty"`
	Address        string  `json:"address,omitempty"`
	DistanceMeters float64 `json:"distance_meters,omitempty"`
}

// DefaultProfile 默认监护档案（三个空位置槽）
func DefaultProfile() CareProfile {
	return CareProfile{
		Locations: []NamedLocation{
			{ID: 1}, {ID: 2}, {ID: 3},
		},
		RadiusMeters: DefaultRadiusMeters,
	}
}

// Service 监护档案服务（围栏判定 + 档案读写）
type Service struct {
	path    string
	logger  *zap.Logger
	mu      sync.RWMutex
	profile CareProfile
}

// NewService 创建服务并加载档案文件
// 文件缺失或损坏时使用默认档案，不视为致命错误
func NewService(path string, logger *zap.Logger) *Service {
	s := &Service{
		path:    path,
		logger:  logger,
		profile: DefaultProfile(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Info("Care profile file not found, using defaults",
			zap.String("path", path),
		)
		return s
	}

	var profile CareProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		logger.Warn("Corrupt care profile, using defaults",
			zap.String("path", path),
			zap.Error(err),
		)
		return s
	}
	if profile.RadiusMeters <= 0 {
		profile.RadiusMeters = DefaultRadiusMeters
	}
	s.profile = profile
	return s
}

// Profile 返回当前档案副本
func (s *Service) Profile() CareProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Save 保存档案到文件
func (s *Service) Save(profile CareProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile.RadiusMeters <= 0 {
		profile.RadiusMeters = DefaultRadiusMeters
	}
	if len(profile.Locations) > MaxLocations {
		profile.Locations = profile.Locations[:MaxLocations]
	}

	data, err := yaml.Marshal(&profile)
	if err != nil {
		return fmt.Errorf("failed to marshal care profile: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write care profile: %w", err)
	}

	s.profile = profile
	return nil
}

// UpdateCarrier 只更新佩戴者信息
func (s *Service) UpdateCarrier(name, phone string) error {
	profile := s.Profile()
	profile.Carrier = Carrier{Name: name, Phone: phone}
	return s.Save(profile)
}

// UpdateEmergencyPhone 只更新紧急联系电话
func (s *Service) UpdateEmergencyPhone(phone string) error {
	profile := s.Profile()
	profile.EmergencyPhone = phone
	return s.Save(profile)
}

// UpdateLocation 按 ID 更新一个重要位置
func (s *Service) UpdateLocation(id int, loc NamedLocation) error {
	profile := s.Profile()
	for i := range profile.Locations {
		if profile.Locations[i].ID == id {
			loc.ID = id
			profile.Locations[i] = loc
			return s.Save(profile)
		}
	}
	return fmt.Errorf("location %d not found", id)
}

// CheckGeofence 判断坐标是否落在任一已配置的重要位置围栏内
// 返回第一个命中的位置；未命中时 IsInGeofence 为 false
func (s *Service) CheckGeofence(lat, lon float64) Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, loc := range s.profile.Locations {
		if loc.Name == "" || (loc.Latitude == 0 && loc.Longitude == 0) {
			continue
		}

		distance := haversineMeters(lat, lon, loc.Latitude, loc.Longitude)
		if distance <= s.profile.RadiusMeters {
			return Result{
				IsInGeofence:   true,
				LocationName:   loc.Name,
				Address:        loc.Address,
				DistanceMeters: math.Round(distance),
			}
		}
	}

	return Result{}
}

// haversineMeters 球面距离（米）
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371e3

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

package checklist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Cache keys for the four definition payloads.
const (
	cacheKeyHouse    = "housecheck:v1:base_house_checklist"
	cacheKeyRooms    = "housecheck:v1:base_rooms_checklist"
	cacheKeyProducts = "housecheck:v1:base_products_checklist"
	cacheKeyCustom   = "housecheck:v1:custom_user_checklist"
)

// File names under the data directory holding the definitions.
const (
	fileHouse    = "house_type_checklist.json"
	fileRooms    = "rooms_type_checklist.json"
	fileProducts = "products_type_checklist.json"
	fileCustom   = "custom_user_checklist.json"
)

// Store loads checklist definitions from the data directory with a
// read-through cache in front. The three base definitions are required
// files; the custom user checklist is optional and degrades to empty on
// any failure.
type Store struct {
	dir    string
	cache  *Cache
	logger *zap.Logger
}

// NewStore builds a checklist store over dir. cache may be nil to run
// without caching.
func NewStore(dir string, cache *Cache, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, cache: cache, logger: logger}
}

// House loads the base house definition.
func (s *Store) House(ctx context.Context) (*Definition, error) {
	def, err := s.loadDefinition(ctx, cacheKeyHouse, fileHouse)
	if err != nil {
		return nil, err
	}
	normalizeHouse(def)
	s.logger.Debug("house checklist loaded", zap.Int("house_types", len(def.HouseTypes)))
	return def, nil
}

// Rooms loads the base rooms definition.
func (s *Store) Rooms(ctx context.Context) (*Definition, error) {
	def, err := s.loadDefinition(ctx, cacheKeyRooms, fileRooms)
	if err != nil {
		return nil, err
	}
	normalizeRooms(def)
	s.logger.Debug("rooms checklist loaded", zap.Int("room_types", len(def.RoomTypes)))
	return def, nil
}

// Products loads the base products definition.
func (s *Store) Products(ctx context.Context) (*Definition, error) {
	def, err := s.loadDefinition(ctx, cacheKeyProducts, fileProducts)
	if err != nil {
		return nil, err
	}
	normalizeProducts(def)
	s.logger.Debug("products checklist loaded", zap.Int("items", len(def.BaseItems())))
	return def, nil
}

// CustomUser loads the user's custom checklist additions. Missing or
// malformed files yield an empty payload rather than an error.
func (s *Store) CustomUser(ctx context.Context) *Custom {
	cached := &Custom{}
	if s.cache.Get(ctx, cacheKeyCustom, cached) {
		return cached
	}

	path := filepath.Join(s.dir, fileCustom)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("custom user checklist not found, using empty default",
				zap.String("path", path))
		} else {
			s.logger.Error("failed to read custom user checklist",
				zap.String("path", path), zap.Error(err))
		}
		return &Custom{}
	}

	custom := parseCustom(data, s.logger)
	s.cache.Set(ctx, cacheKeyCustom, custom)
	s.logger.Debug("custom user checklist loaded",
		zap.Int("global", len(custom.Global)),
		zap.Int("house_level", len(custom.HouseLevel)),
		zap.Int("room_level", len(custom.RoomLevel)),
		zap.Int("product_level", len(custom.ProductLevel)))
	return custom
}

// Warm loads the three base definitions so first requests hit a warm
// cache, and reports how many checklist types are known.
func (s *Store) Warm(ctx context.Context) error {
	house, err := s.House(ctx)
	if err != nil {
		return err
	}
	rooms, err := s.Rooms(ctx)
	if err != nil {
		return err
	}
	if _, err := s.Products(ctx); err != nil {
		return err
	}
	s.logger.Info("checklist definitions warmed",
		zap.Int("house_types", len(house.HouseTypes)),
		zap.Int("room_types", len(rooms.RoomTypes)))
	return nil
}

// Invalidate drops every cached checklist payload.
func (s *Store) Invalidate(ctx context.Context) {
	for _, key := range []string{cacheKeyHouse, cacheKeyRooms, cacheKeyProducts, cacheKeyCustom} {
		s.cache.Delete(ctx, key)
	}
	s.logger.Info("checklist cache invalidated")
}

// InvalidateFile drops the cache entry backed by the given file name.
// Unknown file names are ignored.
func (s *Store) InvalidateFile(ctx context.Context, name string) bool {
	key, ok := cacheKeyForFile(name)
	if !ok {
		return false
	}
	s.cache.Delete(ctx, key)
	s.logger.Info("checklist cache entry invalidated",
		zap.String("file", name))
	return true
}

// Dir returns the data directory backing the store.
func (s *Store) Dir() string { return s.dir }

func (s *Store) loadDefinition(ctx context.Context, key, file string) (*Definition, error) {
	cached := &Definition{}
	if s.cache.Get(ctx, key, cached) {
		return cached, nil
	}

	path := filepath.Join(s.dir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("checklist file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read checklist %s: %w", file, err)
	}

	def := &Definition{}
	if err := json.Unmarshal(data, def); err != nil {
		return nil, fmt.Errorf("failed to parse checklist %s: %w", file, err)
	}

	s.cache.Set(ctx, key, def)
	return def, nil
}

// cacheKeyForFile maps a checklist file name to its cache key.
func cacheKeyForFile(name string) (string, bool) {
	switch name {
	case fileHouse:
		return cacheKeyHouse, true
	case fileRooms:
		return cacheKeyRooms, true
	case fileProducts:
		return cacheKeyProducts, true
	case fileCustom:
		return cacheKeyCustom, true
	}
	return "", false
}

// normalizeHouse fills the structural sections merges expect.
func normalizeHouse(def *Definition) {
	if def.Default == nil {
		def.Default = &Checklist{Items: []Item{}}
	}
	if def.HouseTypes == nil {
		def.HouseTypes = map[string]Checklist{}
	}
}

func normalizeRooms(def *Definition) {
	if def.Default == nil {
		def.Default = &Checklist{Items: []Item{}}
	}
	if def.RoomTypes == nil {
		def.RoomTypes = map[string]Checklist{}
	}
}

// normalizeProducts tolerates both product definition forms: a flat item
// list or a default section.
func normalizeProducts(def *Definition) {
	if len(def.Items) == 0 && def.Default == nil {
		def.Default = &Checklist{Items: []Item{}}
	}
}

// parseCustom decodes a custom checklist section by section so one
// malformed section does not discard the rest. Room entries without a
// room id are dropped.
func parseCustom(data []byte, logger *zap.Logger) *Custom {
	var raw struct {
		Global       json.RawMessage `json:"global"`
		HouseLevel   json.RawMessage `json:"house_level"`
		RoomLevel    json.RawMessage `json:"room_level"`
		ProductLevel json.RawMessage `json:"product_level"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Error("invalid custom user checklist, using empty default", zap.Error(err))
		return &Custom{}
	}

	custom := &Custom{}
	custom.Global = decodeItems(raw.Global, "global", logger)
	custom.HouseLevel = decodeItems(raw.HouseLevel, "house_level", logger)
	custom.RoomLevel = decodeRoomLevel(raw.RoomLevel, logger)

	if len(raw.ProductLevel) > 0 {
		if err := json.Unmarshal(raw.ProductLevel, &custom.ProductLevel); err != nil {
			logger.Warn("invalid product_level section in custom checklist", zap.Error(err))
			custom.ProductLevel = nil
		}
	}
	return custom
}

func decodeItems(raw json.RawMessage, section string, logger *zap.Logger) []Item {
	if len(raw) == 0 {
		return nil
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Warn("invalid section in custom checklist",
			zap.String("section", section), zap.Error(err))
		return nil
	}
	return items
}

func decodeRoomLevel(raw json.RawMessage, logger *zap.Logger) []RoomCustom {
	if len(raw) == 0 {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		logger.Warn("invalid room_level section in custom checklist", zap.Error(err))
		return nil
	}
	var valid []RoomCustom
	for _, entry := range entries {
		var rc RoomCustom
		if err := json.Unmarshal(entry, &rc); err != nil || rc.RoomID == "" {
			logger.Warn("dropping malformed room_level entry in custom checklist")
			continue
		}
		if rc.CustomItems == nil {
			rc.CustomItems = []Item{}
		}
		valid = append(valid, rc)
	}
	return valid
}

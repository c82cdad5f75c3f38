package checklist

// Custom holds user-supplied checklist additions layered onto the base
// definitions during merge. Global items apply everywhere; the leveled
// groups target the house, a specific room, or a specific product.
type Custom struct {
	Global       []Item          `json:"global,omitempty"`
	HouseLevel   []Item          `json:"house_level,omitempty"`
	RoomLevel    []RoomCustom    `json:"room_level,omitempty"`
	ProductLevel []ProductCustom `json:"product_level,omitempty"`
}

// RoomCustom attaches extra items to a single room.
type RoomCustom struct {
	RoomID      string `json:"room_id"`
	CustomItems []Item `json:"custom_items"`
}

// ProductCustom attaches extra items to a single product. Merged item
// ids are prefixed with the product id to keep them unique.
type ProductCustom struct {
	ProductID   string `json:"product_id"`
	CustomItems []Item `json:"custom_items"`
}

// SimulationRoomID is the placeholder room used when merging room-level
// custom items before any real room ids are known.
const SimulationRoomID = "simulation_room"

// MergeHouse builds the house evaluation list: base items, then the
// groups for each detected house type in order, then custom global and
// house-level items, deduplicated by id with the last occurrence
// winning.
func MergeHouse(def *Definition, houseTypes []string, custom *Custom) []Item {
	items := append([]Item(nil), def.BaseItems()...)
	if def != nil {
		for _, t := range houseTypes {
			if group, ok := def.HouseTypes[t]; ok {
				items = append(items, group.Items...)
			}
		}
	}
	if custom != nil {
		items = append(items, custom.Global...)
		items = append(items, custom.HouseLevel...)
	}
	return Dedupe(items)
}

// MergeRoom builds one room's evaluation list: base items, then the
// groups for each detected room type, then custom global items and any
// room-level entries whose room id matches.
func MergeRoom(def *Definition, roomTypes []string, roomID string, custom *Custom) []Item {
	items := append([]Item(nil), def.BaseItems()...)
	if def != nil {
		for _, t := range roomTypes {
			if group, ok := def.RoomTypes[t]; ok {
				items = append(items, group.Items...)
			}
		}
	}
	if custom != nil {
		items = append(items, custom.Global...)
		for _, entry := range custom.RoomLevel {
			if entry.RoomID == roomID {
				items = append(items, entry.CustomItems...)
			}
		}
	}
	return Dedupe(items)
}

// MergeProducts builds the product evaluation list from the base items,
// optionally filtered to a whitelist of product ids, plus product-level
// custom items cloned under a "{product_id}__{item_id}" id.
func MergeProducts(def *Definition, custom *Custom, whitelist []string) []Item {
	items := append([]Item(nil), def.BaseItems()...)
	if len(whitelist) > 0 {
		allowed := make(map[string]struct{}, len(whitelist))
		for _, id := range whitelist {
			allowed[id] = struct{}{}
		}
		filtered := make([]Item, 0, len(items))
		for _, it := range items {
			if _, ok := allowed[it.ID]; ok {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	if custom != nil {
		for _, entry := range custom.ProductLevel {
			for _, ni := range entry.CustomItems {
				cloned := ni
				cloned.ID = entry.ProductID + "__" + ni.ID
				items = append(items, cloned)
			}
		}
	}
	return Dedupe(items)
}

// Dedupe removes duplicate ids keeping the last occurrence: walk the
// list in reverse, keep an item the first time its id is seen, then
// reverse back to restore the original order. Items with an empty id
// are dropped.
func Dedupe(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if it.ID == "" {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// PreMergeHouse flattens a structured house definition into a single
// item list, assuming every declared house type applies. Simulation
// runs merge before the pipeline rather than after type detection.
func PreMergeHouse(def *Definition, custom *Custom) *Definition {
	return &Definition{Items: MergeHouse(def, def.AllowedHouseTypes(), custom)}
}

// PreMergeRooms flattens a structured rooms definition assuming every
// declared room type applies, merging room-level custom items under the
// simulation placeholder room.
func PreMergeRooms(def *Definition, custom *Custom) *Definition {
	return &Definition{Items: MergeRoom(def, def.AllowedRoomTypes(), SimulationRoomID, custom)}
}

// PreMergeProducts flattens a products definition with custom items and
// no whitelist.
func PreMergeProducts(def *Definition, custom *Custom) *Definition {
	return &Definition{Items: MergeProducts(def, custom, nil)}
}

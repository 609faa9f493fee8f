package mapmodel

// BuiltinDimensions is the fixed table of known external image names to
// their pixel dimensions. spec.md §4.3 requires that an External image
// "resolve to a known built-in dimension table"; this is the stand-in for
// the asset catalogue DDNet ships alongside the client (the binary codec
// that actually reads/writes these bytes is out of scope, but the name
// grammar that decides "known" or not is part of this core).
var BuiltinDimensions = map[string][2]int{
	"generic_unhookable": {1024, 1024},
	"generic_deathtiles": {1024, 1024},
	"grass_main":         {1024, 1024},
	"grass_doodads":      {1024, 512},
	"desert_main":        {1024, 1024},
	"desert_doodads":     {1024, 512},
	"winter_main":        {1024, 1024},
	"winter_doodads":     {1024, 512},
	"jungle_main":        {1024, 1024},
	"jungle_doodads":     {1024, 512},
	"moon_main":          {1024, 1024},
	"mountains_main":     {1024, 1024},
	"stars":              {1024, 1024},
	"sun":                {256, 256},
	"clouds":             {1024, 256},
	"entities":           {1024, 1024},
	"font_teeworlds":     {256, 256},
}

// ResolveBuiltin looks up a known external image name's dimensions.
func ResolveBuiltin(name string) (width, height int, ok bool) {
	dim, ok := BuiltinDimensions[name]
	if !ok {
		return 0, 0, false
	}
	return dim[0], dim[1], true
}

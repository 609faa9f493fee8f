package mapmodel

import (
	"fmt"
	"strings"

	"github.com/ddnet/maproom/apierrors"
)

// ValidateName enforces the file-name grammar (spec.md §4.3): non-empty, no
// path separators, and not starting with a dot — applied to room/map names
// and to image/envelope names alike (spec.md §3 invariant 7).
func ValidateName(name string) error {
	if name == "" {
		return apierrors.New(apierrors.KindInvalidFileName, "name must not be empty")
	}
	if len(name) > MaxNameLen {
		return apierrors.FieldTooLong("name", MaxNameLen)
	}
	if strings.HasPrefix(name, ".") {
		return apierrors.New(apierrors.KindInvalidFileName, "name must not start with a dot")
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return apierrors.New(apierrors.KindInvalidFileName, "name must not contain path separators")
	}
	return nil
}

// SelfCheckInfo validates info fields purely intrinsically.
func SelfCheckInfo(info Info) error {
	fields := map[string]string{
		"author":  info.Author,
		"version": info.Version,
		"credits": info.Credits,
		"license": info.License,
	}
	for name, v := range fields {
		if len(v) > MaxInfoFieldLen {
			return apierrors.FieldTooLong("info."+name, MaxInfoFieldLen)
		}
	}
	if len(info.Settings) > MaxSettingsCount {
		return apierrors.New(apierrors.KindInvalidField, "info.settings: too many settings lines")
	}
	for i, s := range info.Settings {
		if len(s) > MaxSettingLen {
			return apierrors.FieldTooLong(fmt.Sprintf("info.settings[%d]", i), MaxSettingLen)
		}
	}
	return nil
}

// SelfCheckClip validates a group's clip rectangle has non-negative width
// and height (spec.md §4.1).
func SelfCheckClip(w, h int32) error {
	if w < 0 || h < 0 {
		return apierrors.New(apierrors.KindInvalidClip, "clip rectangle must have non-negative width and height")
	}
	return nil
}

// SelfCheckEnvelope validates an envelope intrinsically: name length and
// point count.
func SelfCheckEnvelope(e Envelope) error {
	if err := ValidateName(e.Name); err != nil {
		return err
	}
	if len(e.Points) > MaxEnvPoints {
		return apierrors.New(apierrors.KindMaxEnvPoints, "envelope has too many points")
	}
	return nil
}

// SelfCheckAutomapperSeed validates an automapper rule seed is within
// bounds (spec.md §4.1).
func SelfCheckAutomapperSeed(seed int64) error {
	if seed < 0 || seed > MaxAutomapperSeed {
		return apierrors.New(apierrors.KindInvalidField, "automapper seed out of range")
	}
	return nil
}

// SelfCheckDimensions validates a proposed width/height pair against the
// [2,10000] resize bound (spec.md §4.3).
func SelfCheckDimensions(width, height uint16) error {
	if int(width) < MinDim || int(width) > MaxDim {
		return apierrors.New(apierrors.KindInvalidField, "width out of range [2,10000]")
	}
	if int(height) < MinDim || int(height) > MaxDim {
		return apierrors.New(apierrors.KindInvalidField, "height out of range [2,10000]")
	}
	return nil
}

// MapCheck re-validates every cross-referential invariant against the
// current map: ordering/curve validity, index references, and the
// structural physics-group rules (spec.md §3, §4.1). It is run after
// self-check and again, as a full re-assertion, after every apply.
func MapCheck(m *Map) error {
	if err := checkPhysicsGroup(m); err != nil {
		return err
	}
	if err := checkEnvelopes(m); err != nil {
		return err
	}
	if err := checkImages(m); err != nil {
		return err
	}
	if err := checkLayerReferences(m); err != nil {
		return err
	}
	return nil
}

func checkPhysicsGroup(m *Map) error {
	physicsGroups := 0
	for gi := range m.Groups {
		if m.Groups[gi].isPhysicsGroup() {
			physicsGroups++
		}
	}
	if physicsGroups > 1 {
		return apierrors.New(apierrors.KindInternal, "more than one physics group exists")
	}
	if physicsGroups == 0 {
		return apierrors.New(apierrors.KindInternal, "no physics group exists")
	}

	gi := m.PhysicsGroupIndex()
	group := m.Groups[gi]

	seen := map[LayerKind]bool{}
	var gameW, gameH uint16
	hasGame := false
	for _, l := range group.Layers {
		if !l.Kind.IsPhysics() {
			continue
		}
		if seen[l.Kind] {
			return apierrors.New(apierrors.KindInternal, fmt.Sprintf("duplicate physics layer kind %s", l.Kind))
		}
		seen[l.Kind] = true
		if l.Kind == LayerGame {
			hasGame = true
			gameW, gameH = l.Width, l.Height
		}
	}
	if !hasGame {
		return apierrors.New(apierrors.KindInternal, "physics group has no Game layer")
	}
	for _, l := range group.Layers {
		if l.Kind.IsPhysics() && (l.Width != gameW || l.Height != gameH) {
			return apierrors.New(apierrors.KindInternal, fmt.Sprintf("physics layer %s shape mismatches Game layer", l.Kind))
		}
	}

	if group.Clipping {
		if err := SelfCheckClip(group.ClipW, group.ClipH); err != nil {
			return err
		}
	}
	return nil
}

func checkEnvelopes(m *Map) error {
	for ei, e := range m.Envelopes {
		if err := SelfCheckEnvelope(e); err != nil {
			return err
		}
		var lastTime int32 = -1
		for pi, p := range e.Points {
			if p.Time < 0 {
				return apierrors.New(apierrors.KindInvalidField, fmt.Sprintf("envelope[%d].points[%d]: negative time", ei, pi))
			}
			if p.Time < lastTime {
				return apierrors.New(apierrors.KindInvalidField, fmt.Sprintf("envelope[%d].points[%d]: time not ordered", ei, pi))
			}
			lastTime = p.Time
			if !validCurve(p.Curve) {
				return apierrors.New(apierrors.KindInvalidField, fmt.Sprintf("envelope[%d].points[%d]: invalid curve kind", ei, pi))
			}
		}
	}
	return nil
}

func validCurve(c CurveKind) bool {
	switch c {
	case CurveStep, CurveLinear, CurveSlow, CurveFast, CurveSmooth, CurveBezier:
		return true
	default:
		return false
	}
}

func checkImages(m *Map) error {
	if len(m.Images) > MaxImages {
		return apierrors.New(apierrors.KindMaxImages, "too many images")
	}
	for _, img := range m.Images {
		if err := ValidateName(img.Name); err != nil {
			return err
		}
		if img.Kind == ImageExternal {
			w, h, ok := ResolveBuiltin(img.Name)
			if !ok {
				return apierrors.New(apierrors.KindInvalidImage, fmt.Sprintf("external image %q is not a known built-in", img.Name))
			}
			if img.Width != w || img.Height != h {
				return apierrors.New(apierrors.KindInvalidImage, fmt.Sprintf("external image %q dimensions mismatch built-in table", img.Name))
			}
		}
	}
	return nil
}

func checkLayerReferences(m *Map) error {
	if len(m.Groups) > MaxGroups {
		return apierrors.New(apierrors.KindMaxGroups, "too many groups")
	}
	totalLayers := 0
	for gi := range m.Groups {
		g := &m.Groups[gi]
		if g.Clipping {
			if err := SelfCheckClip(g.ClipW, g.ClipH); err != nil {
				return err
			}
		}
		totalLayers += len(g.Layers)
		if len(g.Layers) > MaxLayersPerMap {
			return apierrors.New(apierrors.KindMaxLayers, "too many layers in group")
		}
		for li := range g.Layers {
			l := &g.Layers[li]
			if err := ValidateName(l.Name); err != nil && l.Name != "" {
				return err
			}
			if err := checkTileLayerRefs(m, l); err != nil {
				return err
			}
			if l.Kind == LayerQuads {
				if err := checkQuadsLayerRefs(m, l); err != nil {
					return err
				}
			}
		}
	}
	if totalLayers > MaxLayersPerMap {
		return apierrors.New(apierrors.KindMaxLayers, "too many layers")
	}
	return nil
}

func checkTileLayerRefs(m *Map, l *Layer) error {
	if l.Kind == LayerTiles {
		if l.Image != nil {
			if err := checkImageRef(m, *l.Image); err != nil {
				return err
			}
			if !m.Images[*l.Image].TilemapSuitable() {
				return apierrors.New(apierrors.KindImageNotTilemap, "tiles layer image is not tilemap-suitable")
			}
		}
		if l.ColorEnv != nil {
			if err := checkEnvRef(m, *l.ColorEnv, EnvelopeColor); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkQuadsLayerRefs(m *Map, l *Layer) error {
	if l.QuadsImage != nil {
		if err := checkImageRef(m, *l.QuadsImage); err != nil {
			return err
		}
	}
	if len(l.Quads) > MaxQuadsPerLayer {
		return apierrors.New(apierrors.KindMaxQuads, "too many quads in layer")
	}
	for qi := range l.Quads {
		q := &l.Quads[qi]
		if q.PosEnv != nil {
			if err := checkEnvRef(m, *q.PosEnv, EnvelopePosition); err != nil {
				return err
			}
		}
		if q.ColorEnv != nil {
			if err := checkEnvRef(m, *q.ColorEnv, EnvelopeColor); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkImageRef(m *Map, idx int) error {
	if idx < 0 || idx >= len(m.Images) {
		return apierrors.New(apierrors.KindNotFoundImage, "image index out of range")
	}
	return nil
}

func checkEnvRef(m *Map, idx int, wantKind EnvelopeKind) error {
	if idx < 0 || idx >= len(m.Envelopes) {
		return apierrors.New(apierrors.KindNotFoundEnvelope, "envelope index out of range")
	}
	if m.Envelopes[idx].Kind != wantKind {
		return apierrors.New(apierrors.KindWrongEnvelopeType, fmt.Sprintf("expected %s envelope, got %s", wantKind, m.Envelopes[idx].Kind))
	}
	return nil
}

package mapmodel

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/azybler/ltn/pkg/osmtags"
)

// sortedModalFilterIDs returns a map's road IDs in ascending order, so that
// serialization never depends on Go's randomized map iteration order — the
// source of the determinism spec.md §5 requires on every externally
// observable path, including the binary round-trip.
func sortedModalFilterIDs(m map[RoadID]ModalFilter) []RoadID {
	ids := make([]RoadID, 0, len(m))
	for rid := range m {
		ids = append(ids, rid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

const (
	magicBytes   = "LTNMODEL"
	binaryVersion = uint32(1)
	maxRoads         = 50_000_000
	maxIntersections = 10_000_000
)

type fileHeader struct {
	Magic        [8]byte
	Version      uint32
	NumRoads     uint32
	NumNodes     uint32
	StudyAreaLen uint32
}

// WriteBinary serializes a MapModel to path using a versioned,
// CRC32-checksummed format, writing to a temp file and renaming atomically
// into place. Ported from azybler-map_router/pkg/graph/binary.go's
// WriteBinary, generalized from the teacher's CHGraph-only format to one
// that also carries Road/Intersection metadata (name, kind, flow) and the
// active edit overlay (modal filters, turn restrictions, main road penalty)
// needed by every downstream component, not just routing. Diagonal filters
// are not persisted: DiagonalFilter.Allows is a closure over caller-supplied
// road groups, not serializable data, so a reload starts with no diagonal
// filters and callers must re-apply them via the edit package.
func WriteBinary(path string, m *MapModel) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ltnmodel-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	crcw := newCRC32Writer(tmp)

	if len(m.Roads) > maxRoads || len(m.Intersections) > maxIntersections {
		return fmt.Errorf("model exceeds serialization limits")
	}

	hdr := fileHeader{
		Version:      binaryVersion,
		NumRoads:     uint32(len(m.Roads)),
		NumNodes:     uint32(len(m.Intersections)),
		StudyAreaLen: uint32(len(m.StudyAreaID)),
	}
	copy(hdr.Magic[:], magicBytes)

	if err = binary.Write(crcw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err = crcw.Write([]byte(m.StudyAreaID)); err != nil {
		return fmt.Errorf("write study area id: %w", err)
	}

	for _, in := range m.Intersections {
		if err = binary.Write(crcw, binary.LittleEndian, in.Lat); err != nil {
			return err
		}
		if err = binary.Write(crcw, binary.LittleEndian, in.Lon); err != nil {
			return err
		}
		syn := uint8(0)
		if in.Synthetic {
			syn = 1
		}
		if err = binary.Write(crcw, binary.LittleEndian, syn); err != nil {
			return err
		}
	}

	for _, r := range m.Roads {
		if err = writeRoad(crcw, r); err != nil {
			return fmt.Errorf("write road %d: %w", r.ID, err)
		}
	}

	if err = binary.Write(crcw, binary.LittleEndian, m.MainRoadPenalty); err != nil {
		return fmt.Errorf("write main road penalty: %w", err)
	}

	if err = binary.Write(crcw, binary.LittleEndian, uint32(len(m.ModalFilters))); err != nil {
		return fmt.Errorf("write modal filter count: %w", err)
	}
	for _, rid := range sortedModalFilterIDs(m.ModalFilters) {
		f := m.ModalFilters[rid]
		if err = binary.Write(crcw, binary.LittleEndian, uint32(rid)); err != nil {
			return err
		}
		if err = binary.Write(crcw, binary.LittleEndian, f.Frac); err != nil {
			return err
		}
		if err = binary.Write(crcw, binary.LittleEndian, uint32(len(f.Kind))); err != nil {
			return err
		}
		if _, err = crcw.Write([]byte(f.Kind)); err != nil {
			return err
		}
	}

	if err = binary.Write(crcw, binary.LittleEndian, uint32(len(m.TurnRestrictions))); err != nil {
		return fmt.Errorf("write turn restriction count: %w", err)
	}
	for _, tr := range m.TurnRestrictions {
		for _, v := range []uint32{uint32(tr.From), uint32(tr.To), uint32(tr.Via)} {
			if err = binary.Write(crcw, binary.LittleEndian, v); err != nil {
				return err
			}
		}
	}

	if err = binary.Write(crcw, binary.LittleEndian, uint32(len(m.OriginalModalFilters))); err != nil {
		return fmt.Errorf("write original modal filter count: %w", err)
	}
	for _, rid := range sortedModalFilterIDs(m.OriginalModalFilters) {
		f := m.OriginalModalFilters[rid]
		if err = binary.Write(crcw, binary.LittleEndian, uint32(rid)); err != nil {
			return err
		}
		if err = binary.Write(crcw, binary.LittleEndian, f.Frac); err != nil {
			return err
		}
		if err = binary.Write(crcw, binary.LittleEndian, uint32(len(f.Kind))); err != nil {
			return err
		}
		if _, err = crcw.Write([]byte(f.Kind)); err != nil {
			return err
		}
	}

	sum := crcw.Sum32()
	if err = binary.Write(tmp, binary.LittleEndian, sum); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func writeRoad(w io.Writer, r Road) error {
	isMainRoad := uint8(0)
	if r.IsMainRoad {
		isMainRoad = 1
	}
	fields := []any{
		uint32(r.Src), uint32(r.Dst), uint32(r.Kind), uint32(r.Flow),
		r.LengthM, r.SpeedKMH, r.OSMWayID, uint32(r.Severance), isMainRoad,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(r.Name))); err != nil {
		return err
	}
	if _, err := w.Write([]byte(r.Name)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(r.ShapeLat))); err != nil {
		return err
	}
	for i := range r.ShapeLat {
		if err := binary.Write(w, binary.LittleEndian, r.ShapeLat[i]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, r.ShapeLon[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadBinary loads a MapModel written by WriteBinary, validating the magic
// bytes, version, and trailing CRC32 checksum before trusting the payload.
func ReadBinary(path string) (*MapModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("file too small")
	}
	payload := data[:len(data)-4]
	wantSum := binary.LittleEndian.Uint32(data[len(data)-4:])
	if gotSum := crc32.ChecksumIEEE(payload); gotSum != wantSum {
		return nil, fmt.Errorf("checksum mismatch: corrupt file")
	}

	r := newByteReader(payload)
	var hdr fileHeader
	if err := r.read(&hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("bad magic bytes")
	}
	if hdr.Version != binaryVersion {
		return nil, fmt.Errorf("unsupported version %d (want %d)", hdr.Version, binaryVersion)
	}
	if hdr.NumRoads > maxRoads || hdr.NumNodes > maxIntersections {
		return nil, fmt.Errorf("header exceeds sane limits")
	}

	studyArea, err := r.readString(int(hdr.StudyAreaLen))
	if err != nil {
		return nil, err
	}

	intersections := make([]Intersection, hdr.NumNodes)
	for i := range intersections {
		var lat, lon float64
		var syn uint8
		if err := r.read(&lat); err != nil {
			return nil, err
		}
		if err := r.read(&lon); err != nil {
			return nil, err
		}
		if err := r.read(&syn); err != nil {
			return nil, err
		}
		intersections[i] = Intersection{ID: IntersectionID(i), Lat: lat, Lon: lon, Synthetic: syn != 0}
	}

	roads := make([]Road, hdr.NumRoads)
	for i := range roads {
		rd, err := readRoad(r, RoadID(i))
		if err != nil {
			return nil, fmt.Errorf("read road %d: %w", i, err)
		}
		roads[i] = rd
	}

	var mainRoadPenalty float64
	if err := r.read(&mainRoadPenalty); err != nil {
		return nil, fmt.Errorf("read main road penalty: %w", err)
	}

	var numFilters uint32
	if err := r.read(&numFilters); err != nil {
		return nil, fmt.Errorf("read modal filter count: %w", err)
	}
	modalFilters := make(map[RoadID]ModalFilter, numFilters)
	for i := uint32(0); i < numFilters; i++ {
		var rid uint32
		if err := r.read(&rid); err != nil {
			return nil, err
		}
		var frac float64
		if err := r.read(&frac); err != nil {
			return nil, err
		}
		var kindLen uint32
		if err := r.read(&kindLen); err != nil {
			return nil, err
		}
		kind, err := r.readString(int(kindLen))
		if err != nil {
			return nil, err
		}
		modalFilters[RoadID(rid)] = ModalFilter{Road: RoadID(rid), Frac: frac, Kind: kind}
	}

	var numRestrictions uint32
	if err := r.read(&numRestrictions); err != nil {
		return nil, fmt.Errorf("read turn restriction count: %w", err)
	}
	turnRestrictions := make([]TurnRestriction, numRestrictions)
	for i := range turnRestrictions {
		var from, to, via uint32
		for _, p := range []*uint32{&from, &to, &via} {
			if err := r.read(p); err != nil {
				return nil, err
			}
		}
		turnRestrictions[i] = TurnRestriction{From: RoadID(from), To: RoadID(to), Via: IntersectionID(via)}
	}

	var numOriginalFilters uint32
	if err := r.read(&numOriginalFilters); err != nil {
		return nil, fmt.Errorf("read original modal filter count: %w", err)
	}
	originalModalFilters := make(map[RoadID]ModalFilter, numOriginalFilters)
	for i := uint32(0); i < numOriginalFilters; i++ {
		var rid uint32
		if err := r.read(&rid); err != nil {
			return nil, err
		}
		var frac float64
		if err := r.read(&frac); err != nil {
			return nil, err
		}
		var kindLen uint32
		if err := r.read(&kindLen); err != nil {
			return nil, err
		}
		kind, err := r.readString(int(kindLen))
		if err != nil {
			return nil, err
		}
		originalModalFilters[RoadID(rid)] = ModalFilter{Road: RoadID(rid), Frac: frac, Kind: kind}
	}

	m := &MapModel{
		StudyAreaID:          studyArea,
		Roads:                roads,
		Intersections:        intersections,
		ModalFilters:         modalFilters,
		DiagonalFilters:      make(map[IntersectionID]DiagonalFilter),
		TurnRestrictions:     turnRestrictions,
		OriginalModalFilters: originalModalFilters,
		MainRoadPenalty:      mainRoadPenalty,
	}
	m.buildCSR()
	m.BuildIndices()
	return m, nil
}

func readRoad(r *byteReader, id RoadID) (Road, error) {
	var rd Road
	rd.ID = id
	var src, dst, kind, flow uint32
	for _, p := range []*uint32{&src, &dst, &kind, &flow} {
		if err := r.read(p); err != nil {
			return rd, err
		}
	}
	rd.Src = IntersectionID(src)
	rd.Dst = IntersectionID(dst)
	rd.Kind = osmtags.RoadKind(kind)
	rd.Flow = TravelFlow(flow)
	if err := r.read(&rd.LengthM); err != nil {
		return rd, err
	}
	if err := r.read(&rd.SpeedKMH); err != nil {
		return rd, err
	}
	if err := r.read(&rd.OSMWayID); err != nil {
		return rd, err
	}
	var sev uint32
	if err := r.read(&sev); err != nil {
		return rd, err
	}
	rd.Severance = osmtags.SeveranceKind(sev)

	var isMainRoad uint8
	if err := r.read(&isMainRoad); err != nil {
		return rd, err
	}
	rd.IsMainRoad = isMainRoad != 0

	var nameLen uint32
	if err := r.read(&nameLen); err != nil {
		return rd, err
	}
	name, err := r.readString(int(nameLen))
	if err != nil {
		return rd, err
	}
	rd.Name = name

	var shapeLen uint32
	if err := r.read(&shapeLen); err != nil {
		return rd, err
	}
	rd.ShapeLat = make([]float64, shapeLen)
	rd.ShapeLon = make([]float64, shapeLen)
	for i := uint32(0); i < shapeLen; i++ {
		if err := r.read(&rd.ShapeLat[i]); err != nil {
			return rd, err
		}
		if err := r.read(&rd.ShapeLon[i]); err != nil {
			return rd, err
		}
	}
	return rd, nil
}

// byteReader is a small cursor over an in-memory buffer, avoiding the
// per-field allocation of bytes.Reader's interface dispatch for the hot
// deserialization path — the same rationale as the teacher's unsafe.Slice
// zero-copy helpers in pkg/graph/binary.go, applied here with encoding/binary
// directly since Road/Intersection are variable-length records rather than
// flat fixed-width arrays.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader { return &byteReader{buf: buf} }

func (r *byteReader) read(v any) error {
	n := binary.Size(v)
	if n < 0 || r.pos+n > len(r.buf) {
		return fmt.Errorf("unexpected EOF")
	}
	err := binary.Read(sliceReader{r.buf[r.pos : r.pos+n]}, binary.LittleEndian, v)
	r.pos += n
	return err
}

func (r *byteReader) readString(n int) (string, error) {
	if r.pos+n > len(r.buf) {
		return "", fmt.Errorf("unexpected EOF reading string")
	}
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}

type sliceReader struct{ b []byte }

func (s sliceReader) Read(p []byte) (int, error) {
	n := copy(p, s.b)
	return n, nil
}

func newCRC32Writer(w io.Writer) *crc32Writer {
	return &crc32Writer{w: w, crc: crc32.NewIEEE()}
}

type crc32Writer struct {
	w   io.Writer
	crc hashSum
}

type hashSum interface {
	io.Writer
	Sum32() uint32
}

func (c *crc32Writer) Write(p []byte) (int, error) {
	c.crc.Write(p)
	return c.w.Write(p)
}

func (c *crc32Writer) Sum32() uint32 { return c.crc.Sum32() }

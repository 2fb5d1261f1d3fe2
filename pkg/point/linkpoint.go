package point

import (
	"encoding/binary"
	"fmt"
)

// LinkPointHeader is the fixed-size prefix of linkpoint content
// (spec.md §6 "Linkpoint content layout").
type LinkPointHeader struct {
	OffsetIPath uint16
	OffsetData  uint16
	Create      uint64
	Group       GroupID
	Domain      Domain
}

// Bytes serializes the linkpoint header to its fixed LinkPointHeaderSize
// byte form.
func (h LinkPointHeader) Bytes() [LinkPointHeaderSize]byte {
	var out [LinkPointHeaderSize]byte
	binary.LittleEndian.PutUint16(out[0:2], h.OffsetIPath)
	binary.LittleEndian.PutUint16(out[2:4], h.OffsetData)
	binary.LittleEndian.PutUint64(out[4:12], h.Create)
	copy(out[12:12+GroupSize], h.Group[:])
	copy(out[12+GroupSize:12+GroupSize+DomainSize], h.Domain[:])
	return out
}

// ParseLinkPointHeader decodes the fixed linkpoint header prefix.
func ParseLinkPointHeader(b []byte) (LinkPointHeader, error) {
	if len(b) < LinkPointHeaderSize {
		return LinkPointHeader{}, fmt.Errorf("%w: linkpoint header", ErrTruncated)
	}
	var h LinkPointHeader
	h.OffsetIPath = binary.LittleEndian.Uint16(b[0:2])
	h.OffsetData = binary.LittleEndian.Uint16(b[2:4])
	h.Create = binary.LittleEndian.Uint64(b[4:12])
	copy(h.Group[:], b[12:12+GroupSize])
	copy(h.Domain[:], b[12+GroupSize:12+GroupSize+DomainSize])
	return h, nil
}

// LinkPointView is the parsed view over a linkpoint's content: the header,
// links, path and application data.
type LinkPointView struct {
	Header LinkPointHeader
	Links  []Link
	Path   Path
	Data   []byte

	linksBytes []byte
	ipathBytes []byte
}

// buildLinkPointContent assembles linkpoint content bytes from its parts,
// computing the offset_ipath/offset_data header fields (spec.md §6).
func buildLinkPointContent(group GroupID, domain Domain, path Path, links []Link, data []byte, create uint64) ([]byte, error) {
	if len(data) > MaxLinkPointDataSize {
		return nil, ErrContentTooLarge
	}
	linksBytes := EncodeLinks(links)
	ipathBytes := path.IPathBytes()

	offsetIPath := LinkPointHeaderSize + len(linksBytes)
	offsetData := offsetIPath + len(ipathBytes)
	if offsetData+len(data) > MaxContentSize {
		return nil, ErrContentTooLarge
	}

	h := LinkPointHeader{
		OffsetIPath: uint16(offsetIPath),
		OffsetData:  uint16(offsetData),
		Create:      create,
		Group:       group,
		Domain:      domain,
	}
	hb := h.Bytes()

	out := make([]byte, 0, offsetData+len(data))
	out = append(out, hb[:]...)
	out = append(out, linksBytes...)
	out = append(out, ipathBytes...)
	out = append(out, data...)
	return out, nil
}

// parseLinkPointContent parses linkpoint content bytes (the region after
// the 4-byte point header) into a LinkPointView, validating the
// offset_ipath/offset_data boundaries and the path's ipath/spath invariant.
func parseLinkPointContent(content []byte) (LinkPointView, error) {
	h, err := ParseLinkPointHeader(content)
	if err != nil {
		return LinkPointView{}, err
	}
	offIPath := int(h.OffsetIPath)
	offData := int(h.OffsetData)
	if offIPath < LinkPointHeaderSize || offData < offIPath || offData > len(content) {
		return LinkPointView{}, fmt.Errorf("%w: linkpoint offsets out of range", ErrPathMalformed)
	}
	linksBytes := content[LinkPointHeaderSize:offIPath]
	if len(linksBytes)%LinkSize != 0 {
		return LinkPointView{}, fmt.Errorf("%w: links region not a multiple of link size", ErrPathMalformed)
	}
	links, err := ParseLinks(linksBytes, len(linksBytes)/LinkSize)
	if err != nil {
		return LinkPointView{}, err
	}
	ipathBytes := content[offIPath:offData]
	path, err := ParseIPath(ipathBytes)
	if err != nil {
		return LinkPointView{}, err
	}
	data := content[offData:]
	return LinkPointView{
		Header:     h,
		Links:      links,
		Path:       path,
		Data:       data,
		linksBytes: linksBytes,
		ipathBytes: ipathBytes,
	}, nil
}

// AsLinkPoint returns the parsed linkpoint view if p is a linkpoint.
func (p *Point) AsLinkPoint() (*LinkPointView, bool) {
	if p.Header.Kind != KindLink {
		return nil, false
	}
	lv, err := parseLinkPointContent(p.Content)
	if err != nil {
		return nil, false
	}
	return &lv, true
}

package point

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// BuildDatapoint builds a datapoint carrying raw application bytes.
func BuildDatapoint(data []byte) (*Point, error) {
	if len(data) > MaxContentSize {
		return nil, ErrContentTooLarge
	}
	content := append([]byte(nil), data...)
	return finish(KindData, content)
}

// BuildErrorpoint builds an errorpoint: a datapoint-shaped point flagged
// KindError, used to record a failure in place of the point it replaces
// (spec.md §3 "Errorpoint").
func BuildErrorpoint(data []byte) (*Point, error) {
	if len(data) > MaxContentSize {
		return nil, ErrContentTooLarge
	}
	content := append([]byte(nil), data...)
	return finish(KindError, content)
}

// BuildLinkpoint builds an unsigned linkpoint scoped to group/domain, at
// path, carrying links and application data.
func BuildLinkpoint(group GroupID, domain Domain, path Path, links []Link, data []byte, create uint64) (*Point, error) {
	content, err := buildLinkPointContent(group, domain, path, links, data, create)
	if err != nil {
		return nil, err
	}
	return finish(KindLink, content)
}

// BuildKeypoint builds a linkpoint as in BuildLinkpoint, then signs it with
// priv and wraps it in a keypoint envelope.
func BuildKeypoint(priv *secp256k1.PrivateKey, group GroupID, domain Domain, path Path, links []Link, data []byte, create uint64) (*Point, error) {
	linkContent, err := buildLinkPointContent(group, domain, path, links, data, create)
	if err != nil {
		return nil, err
	}
	if len(linkContent) > MaxKeyPointDataSize+LinkPointHeaderSize {
		return nil, ErrContentTooLarge
	}
	innerHeader := PointHeader{Kind: KindLink, Size: uint16(PointHeaderSize + len(linkContent))}
	kh, err := SignLinkPoint(priv, innerHeader, linkContent)
	if err != nil {
		return nil, err
	}
	khb := kh.Bytes()
	content := make([]byte, 0, KeyPointPrefixSize+len(linkContent))
	content = append(content, khb[:]...)
	content = append(content, linkContent...)
	return finish(KindKey, content)
}

// finish assembles a point from kind and content, validating the computed
// total size fits a netpkt (spec.md §6 "Size constants").
func finish(kind Kind, content []byte) (*Point, error) {
	total := PointHeaderSize + len(content)
	if total > MaxPointSize {
		return nil, ErrContentTooLarge
	}
	return &Point{
		Header:  PointHeader{Kind: kind, Size: uint16(total)},
		Content: content,
	}, nil
}

// Parse decodes a point from its full on-wire bytes (header + content),
// without validating kind-specific structure — callers that need a
// validated linkpoint/keypoint view should use AsLinkPoint/AsKeyPoint or
// Check.
func Parse(b []byte) (*Point, error) {
	h, err := ParsePointHeader(b)
	if err != nil {
		return nil, err
	}
	if int(h.Size) != len(b) {
		return nil, fmt.Errorf("%w: header size %d does not match buffer length %d", ErrTruncated, h.Size, len(b))
	}
	content := append([]byte(nil), b[PointHeaderSize:]...)
	return &Point{Header: h, Content: content}, nil
}

// Check validates a point's kind-specific structure and, for keypoints,
// its signature: the full parse-and-verify path a store applies to every
// point before admitting it (spec.md §4.2 "AddPoint validates...").
func Check(p *Point) error {
	switch p.Header.Kind {
	case KindData, KindError:
		if len(p.Content) > MaxContentSize {
			return ErrContentTooLarge
		}
		return nil
	case KindLink:
		_, err := parseLinkPointContent(p.Content)
		return err
	case KindKey:
		_, inner, err := splitKeyPointContent(p.Content)
		if err != nil {
			return err
		}
		_, err = parseLinkPointContent(inner)
		return err
	default:
		return fmt.Errorf("%w: 0x%02x", ErrBadKind, byte(p.Header.Kind))
	}
}

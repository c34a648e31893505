package sendto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blacktop/sendto/internal/content"
)

// Attachment is what travels alongside a Telegram message. The set of
// variants is closed: Photo, Video, Audio, Document, MediaGroup, Location,
// Venue, Contact, Voice and Unsupported.
type Attachment interface {
	attachmentType() string
}

// Photo is a single picture.
type Photo struct {
	File          string
	Width, Height int
}

// Video is a single video clip.
type Video struct {
	File                    string
	Duration, Width, Height int
}

// Audio is a single music track.
type Audio struct {
	File     string
	Duration int
}

// Document is any other file.
type Document struct {
	File string
}

// GroupItem is one entry of a media group. Type "video" marks a video,
// anything else a photo.
type GroupItem struct {
	Type  string
	Media string
}

// MediaGroup is an ordered album.
type MediaGroup struct {
	Items []GroupItem
}

// Location is a map point, optionally live for LivePeriod seconds.
type Location struct {
	Latitude, Longitude float64
	LivePeriod          int
}

// Venue is a named place.
type Venue struct {
	Latitude, Longitude float64
	Title, Address      string
}

// Contact is a phone contact.
type Contact struct {
	PhoneNumber, FirstName, LastName string
}

// Voice is a voice note.
type Voice struct {
	File     string
	Duration int
}

// Unsupported carries an attachment type that cannot be sent.
type Unsupported struct {
	Type string
}

func (Photo) attachmentType() string         { return "photo" }
func (Video) attachmentType() string         { return "video" }
func (Audio) attachmentType() string         { return "audio" }
func (Document) attachmentType() string      { return "document" }
func (MediaGroup) attachmentType() string    { return "media_group" }
func (Location) attachmentType() string      { return "location" }
func (Venue) attachmentType() string         { return "venue" }
func (Contact) attachmentType() string       { return "contact" }
func (Voice) attachmentType() string         { return "voice" }
func (u Unsupported) attachmentType() string { return u.Type }

// TypeOf returns the wire name of an attachment, or "" for nil.
func TypeOf(a Attachment) string {
	if a == nil {
		return ""
	}
	return a.attachmentType()
}

// mediaFor maps a media-carrying attachment to its MediaCollection. ok is
// false for attachments that are not plain media.
func mediaFor(a Attachment) (media *content.MediaCollection, ok bool) {
	switch v := a.(type) {
	case Photo:
		return content.NewMediaCollection(content.Media{Path: v.File, MimeType: content.MimeJPEG, Width: v.Width, Height: v.Height}), true
	case Video:
		return content.NewMediaCollection(content.Media{Path: v.File, MimeType: content.MimeMP4, Duration: v.Duration, Width: v.Width, Height: v.Height}), true
	case Audio:
		return content.NewMediaCollection(content.Media{Path: v.File, MimeType: content.MimeMPEG, Duration: v.Duration}), true
	case Document:
		return content.NewMediaCollection(content.Media{Path: v.File, MimeType: content.MimeOctetStream}), true
	case MediaGroup:
		items := make([]content.Media, 0, len(v.Items))
		for _, item := range v.Items {
			mimeType := content.MimeJPEG
			if item.Type == "video" {
				mimeType = content.MimeMP4
			}
			items = append(items, content.Media{Path: item.Media, MimeType: mimeType})
		}
		return content.NewMediaCollection(items...), true
	}
	return nil, false
}

// ParseAttachment builds an attachment from flat key/value pairs as given
// on the command line, e.g. type=photo,file=cat.jpg. Media group files are
// separated by "|" and may carry a "video:" prefix. A file without a type
// is sent as a document; unknown types yield Unsupported.
func ParseAttachment(values map[string]string) (Attachment, error) {
	typ := strings.ToLower(strings.TrimSpace(values["type"]))
	p := attachmentParser{values: values, typ: typ}
	if typ == "" {
		p.typ = "document"
	}

	var a Attachment
	switch typ {
	case "photo":
		a = Photo{File: p.required("file"), Width: p.int("width"), Height: p.int("height")}
	case "video":
		a = Video{File: p.required("file"), Duration: p.int("duration"), Width: p.int("width"), Height: p.int("height")}
	case "audio":
		a = Audio{File: p.required("file"), Duration: p.int("duration")}
	case "document":
		a = Document{File: p.required("file")}
	case "media_group":
		var group MediaGroup
		for _, entry := range strings.Split(p.required("files"), "|") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			item := GroupItem{Type: "photo", Media: entry}
			if kind, path, found := strings.Cut(entry, ":"); found && (kind == "photo" || kind == "video") {
				item = GroupItem{Type: kind, Media: path}
			}
			group.Items = append(group.Items, item)
		}
		a = group
	case "location":
		a = Location{Latitude: p.float("latitude"), Longitude: p.float("longitude"), LivePeriod: p.int("live_period")}
	case "venue":
		a = Venue{Latitude: p.float("latitude"), Longitude: p.float("longitude"), Title: p.required("title"), Address: p.required("address")}
	case "contact":
		a = Contact{PhoneNumber: p.required("phone_number"), FirstName: p.required("first_name"), LastName: values["last_name"]}
	case "voice":
		a = Voice{File: p.required("file"), Duration: p.int("duration")}
	case "":
		a = Document{File: p.required("file")}
	default:
		a = Unsupported{Type: typ}
	}
	if p.err != nil {
		return nil, p.err
	}
	return a, nil
}

type attachmentParser struct {
	values map[string]string
	typ    string
	err    error
}

func (p *attachmentParser) required(key string) string {
	v := strings.TrimSpace(p.values[key])
	if v == "" && p.err == nil {
		p.err = fmt.Errorf("attachment %s: missing %q", p.typ, key)
	}
	return v
}

func (p *attachmentParser) int(key string) int {
	v := strings.TrimSpace(p.values[key])
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("attachment %s: invalid %s %q", p.typ, key, v)
	}
	return n
}

func (p *attachmentParser) float(key string) float64 {
	f, err := strconv.ParseFloat(p.required(key), 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("attachment %s: invalid %s %q", p.typ, key, p.values[key])
	}
	return f
}

// MediaItem is a generic media descriptor. An empty MimeType means
// image/jpeg.
type MediaItem struct {
	Path     string
	MimeType string
}

func mediaCollection(items []MediaItem) *content.MediaCollection {
	media := make([]content.Media, 0, len(items))
	for _, item := range items {
		if item.Path == "" {
			continue
		}
		mimeType := item.MimeType
		if mimeType == "" {
			mimeType = content.MimeJPEG
		}
		media = append(media, content.Media{Path: item.Path, MimeType: mimeType})
	}
	if len(media) == 0 {
		return nil
	}
	return content.NewMediaCollection(media...)
}

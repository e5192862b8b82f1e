// model.go: the data model for the book segmentation hierarchy.
//
// Every entity carries a UUID primary key assigned on create and a persisted
// human-readable label recomputed in its BeforeSave hook. Segmentation
// entities (Page, Line, Character) are immutable with respect to the Run that
// created them: re-running a pipeline stage creates a new Run and a new batch
// of entities, never mutates old ones. Geometry is stored only as local
// offsets relative to the immediate parent; absolute pixel boxes are derived
// on read via the iiif package.
package datastore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printprob/bookdb/internal/iiif"
)

// Spread side markers for Page.
const (
	SideSingle = "s"
	SideLeft   = "l"
	SideRight  = "r"
)

// Character class groups for CharacterClass.
const (
	GroupLowercase   = "cl"
	GroupUppercase   = "cu"
	GroupNumber      = "nu"
	GroupPunctuation = "pu"
)

// EEBOOnlyFields lists the Book columns that must not change once a book is
// flagged as an EEBO book. Enforced in UpdateBook.
var EEBOOnlyFields = []string{
	"eebo", "vid", "tcp", "estc", "zipfile", "pq_url",
	"pq_year_verbatim", "pq_year_early", "pq_year_late",
	"tx_year_early", "tx_year_late",
}

// shortID abbreviates a UUID for use in labels.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newID() string {
	return uuid.NewString()
}

// Book is the root entity of the hierarchy.
type Book struct {
	ID    string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Label string `gorm:"size:200" json:"label"`

	EEBO           *uint  `gorm:"column:eebo;index" json:"eebo"`             // EEBO ID number
	VID            *uint  `gorm:"column:vid;index" json:"vid"`               // ProQuest ID number
	TCP            string `gorm:"column:tcp;size:50;index" json:"tcp"`       // TCP ID
	ESTC           string `gorm:"column:estc;size:50;index" json:"estc"`     // English Short Title Catalogue number
	PQTitle        string `gorm:"size:2000;index" json:"pq_title"`           // title as cataloged by EEBO
	PQPublisher    string `gorm:"size:2000" json:"pq_publisher"`             // publisher as cataloged by EEBO
	PQAuthor       string `gorm:"size:2000" json:"pq_author"`                // author as cataloged by EEBO
	PQYearVerbatim string `gorm:"size:2000" json:"pq_year_verbatim"`         // date string from EEBO, may be non-numeric
	PQYearEarly    *uint  `gorm:"index" json:"pq_year_early"`                // ProQuest early year
	PQYearLate     *uint  `gorm:"index" json:"pq_year_late"`                 // ProQuest late year
	TXYearEarly    *uint  `gorm:"index" json:"tx_year_early"`                // Texas A&M early year
	TXYearLate     *uint  `gorm:"index" json:"tx_year_late"`                 // Texas A&M late year
	PQURL          string  `gorm:"column:pq_url;size:1000" json:"pq_url"`    // ProQuest URL
	PPPublisher    string  `gorm:"size:2000" json:"pp_publisher"`            // publisher as asserted by curators
	PPAuthor       string  `gorm:"size:2000" json:"pp_author"`               // author as asserted by curators
	PPPrinter      string  `gorm:"size:2000;index" json:"pp_printer"`        // printer as asserted by curators
	ColloqPrinter  string  `gorm:"size:2000;index" json:"colloq_printer"`    // commonly-held printer identification
	PPNotes        string  `gorm:"type:text" json:"pp_notes"`                // free notes by curators
	PDF            string  `gorm:"column:pdf;size:1500" json:"pdf"`          // relative file path prefix for PDFs
	Zipfile        string  `gorm:"size:1000" json:"zipfile"`                 // location of the image ZIP, EEBO books only
	Repository     string  `gorm:"size:1000;index" json:"repository"`        // library/collection the images came from
	Prefix         *string `gorm:"size:200;uniqueIndex" json:"prefix"`       // file prefix for bulk image assets

	DateEarly time.Time `gorm:"index" json:"date_early"` // earliest possible print date
	DateLate  time.Time `gorm:"index" json:"date_late"`  // latest possible print date

	Starred    bool `gorm:"index" json:"starred"`
	Ignored    bool `gorm:"index" json:"ignored"` // hidden from search results
	IsEEBOBook bool `gorm:"index" json:"is_eebo_book"`

	NSpreads uint `gorm:"column:n_spreads" json:"n_spreads"` // eagerly maintained spread count
}

func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = newID()
	}
	return nil
}

func (b *Book) BeforeSave(tx *gorm.DB) error {
	b.Label = b.labeller()
	return nil
}

func (b *Book) labeller() string {
	title := b.PQTitle
	if len(title) > 30 {
		title = title[:30]
	}
	vid := uint(0)
	if b.VID != nil {
		vid = *b.VID
	}
	return fmt.Sprintf("(%d) %s...", vid, title)
}

// ZipPath is the glob for this book's TIFFs inside its image ZIP.
func (b *Book) ZipPath() string {
	vid := uint(0)
	if b.VID != nil {
		vid = *b.VID
	}
	return fmt.Sprintf("%s/%d/*.tif", b.Zipfile, vid)
}

// PageRun records one execution of the page segmentation stage for a book.
// A run owns every Page it produced; deleting it cascades to them.
type PageRun struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Label      string    `gorm:"size:200" json:"label"`
	BookID     string    `gorm:"index;not null;constraint:OnDelete:CASCADE" json:"book"`
	CreatedAt  time.Time `gorm:"index" json:"date_started"`
	Params     string    `gorm:"size:200" json:"params"`      // free-text version/parameter string
	ScriptPath string    `gorm:"size:2000" json:"script_path"`
	ScriptMD5  string    `gorm:"size:32" json:"script_md5"`

	Pages []Page `gorm:"foreignKey:CreatedByRunID;constraint:OnDelete:CASCADE" json:"-"`
}

func (r *PageRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}

func (r *PageRun) BeforeSave(tx *gorm.DB) error {
	r.Label = runLabel(r.ID, r.CreatedAt)
	return nil
}

// LineRun records one execution of the line segmentation stage for a book.
type LineRun struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Label      string    `gorm:"size:200" json:"label"`
	BookID     string    `gorm:"index;not null;constraint:OnDelete:CASCADE" json:"book"`
	CreatedAt  time.Time `gorm:"index" json:"date_started"`
	Params     string    `gorm:"size:200" json:"params"`
	ScriptPath string    `gorm:"size:2000" json:"script_path"`
	ScriptMD5  string    `gorm:"size:32" json:"script_md5"`

	Lines []Line `gorm:"foreignKey:CreatedByRunID;constraint:OnDelete:CASCADE" json:"-"`
}

func (r *LineRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}

func (r *LineRun) BeforeSave(tx *gorm.DB) error {
	r.Label = runLabel(r.ID, r.CreatedAt)
	return nil
}

// CharacterRun records one execution of the character segmentation stage.
type CharacterRun struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Label      string    `gorm:"size:200" json:"label"`
	BookID     string    `gorm:"index;not null;constraint:OnDelete:CASCADE" json:"book"`
	CreatedAt  time.Time `gorm:"index" json:"date_started"`
	Params     string    `gorm:"size:200" json:"params"`
	ScriptPath string    `gorm:"size:2000" json:"script_path"`
	ScriptMD5  string    `gorm:"size:32" json:"script_md5"`

	Characters []Character `gorm:"foreignKey:CreatedByRunID;constraint:OnDelete:CASCADE" json:"-"`
}

func (r *CharacterRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}

func (r *CharacterRun) BeforeSave(tx *gorm.DB) error {
	r.Label = runLabel(r.ID, r.CreatedAt)
	return nil
}

func runLabel(id string, created time.Time) string {
	return fmt.Sprintf("%s - %s", id, created.Format(time.RFC3339))
}

// Spread is a single scanned image covering two facing pages. Creating,
// updating or deleting one recomputes the owning book's spread count.
type Spread struct {
	ID       string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Label    string     `gorm:"size:200" json:"label"`
	BookID   string     `gorm:"index;not null;constraint:OnDelete:CASCADE" json:"book"`
	Sequence uint       `gorm:"index" json:"sequence"` // position within the book
	Image    iiif.Image `gorm:"embedded" json:"-"`
}

func (s *Spread) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return nil
}

func (s *Spread) BeforeSave(tx *gorm.DB) error {
	s.Label = fmt.Sprintf("%s spread %d", shortID(s.BookID), s.Sequence)
	return nil
}

// Page is one logical page segmented out of a spread by a PageRun. Pages own
// their image file rather than deriving a crop from the spread, so the
// region geometry recorded here is informational.
type Page struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Label          string     `gorm:"size:200" json:"label"`
	CreatedByRunID string     `gorm:"index;not null;constraint:OnDelete:CASCADE" json:"created_by_run"`
	Sequence       uint       `gorm:"index" json:"sequence"`
	Side           string     `gorm:"size:1" json:"side"` // s, l or r
	X              *float64   `json:"x"`
	Y              *float64   `json:"y"`
	W              *float64   `json:"w"`
	H              *float64   `json:"h"`
	Rot1           *float64   `json:"rot1"`
	Rot2           *float64   `json:"rot2"`
	Image          iiif.Image `gorm:"embedded" json:"-"`

	Lines []Line `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE" json:"-"`
}

func (p *Page) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return nil
}

func (p *Page) BeforeSave(tx *gorm.DB) error {
	p.Label = fmt.Sprintf("%s p. %d-%s", shortID(p.CreatedByRunID), p.Sequence, p.Side)
	return nil
}

// Line is one text line segmented out of a page by a LineRun. Only the
// vertical extent is recorded; horizontal extent spans the full page width.
type Line struct {
	ID             string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Label          string `gorm:"size:200" json:"label"`
	CreatedByRunID string `gorm:"index;not null;constraint:OnDelete:CASCADE" json:"created_by_run"`
	PageID         string `gorm:"index;not null;constraint:OnDelete:CASCADE" json:"page"`
	Sequence       uint   `gorm:"index" json:"sequence"` // order on page, top to bottom
	YMin           int    `gorm:"column:y_min" json:"y_min"`
	YMax           int    `gorm:"column:y_max" json:"y_max"`

	Characters []Character `gorm:"foreignKey:LineID;constraint:OnDelete:CASCADE" json:"-"`
}

func (l *Line) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = newID()
	}
	return nil
}

func (l *Line) BeforeSave(tx *gorm.DB) error {
	l.Label = fmt.Sprintf("%s l. %d", shortID(l.PageID), l.Sequence)
	return nil
}

// Height is the vertical extent of the line on its page image.
func (l *Line) Height() int {
	return l.YMax - l.YMin
}

// Box is the line's absolute region on the parent page image.
func (l *Line) Box() iiif.Box {
	return iiif.LineBox(l.YMin, l.YMax)
}

// CharacterClass is the globally shared taxonomy of glyph classes, keyed by
// the classifier's mnemonic code.
type CharacterClass struct {
	Classname string `gorm:"primaryKey;size:50" json:"classname"`
	Label     string `gorm:"size:50" json:"label"`
	Group     string `gorm:"column:class_group;size:2;index" json:"group"` // cl, cu, nu or pu
}

// BreakageType tags a kind of damage or breakage a character can exhibit.
type BreakageType struct {
	ID    string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Label string `gorm:"size:200;uniqueIndex" json:"label"`
}

func (b *BreakageType) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = newID()
	}
	return nil
}

// Character is one glyph segmented out of a line by a CharacterRun. The
// machine-assigned class is never overwritten; curators record corrections in
// HumanCharacterClass.
type Character struct {
	ID             string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Label          string `gorm:"size:200" json:"label"`
	CreatedByRunID string `gorm:"index;not null;constraint:OnDelete:CASCADE" json:"created_by_run"`
	LineID         string `gorm:"index;not null;constraint:OnDelete:CASCADE" json:"line"`
	Sequence       uint   `gorm:"index" json:"sequence"` // order on the line
	XMin           int    `gorm:"column:x_min" json:"x_min"`
	XMax           int    `gorm:"column:x_max" json:"x_max"`
	YMin           *int   `gorm:"column:y_min" json:"y_min"` // nil inherits the line's extent
	YMax           *int   `gorm:"column:y_max" json:"y_max"`

	CharacterClassID      string   `gorm:"index;not null" json:"character_class"`
	HumanCharacterClassID *string  `gorm:"index" json:"human_character_class"`
	ClassProbability      float64  `gorm:"index" json:"class_probability"`
	DamageScore           *float64 `gorm:"index" json:"damage_score"`
	Exposure              int      `json:"exposure"`
	Offset                int      `json:"offset"`

	BreakageTypes []BreakageType `gorm:"many2many:character_breakage_types" json:"-"`
}

func (c *Character) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = newID()
	}
	return nil
}

func (c *Character) BeforeSave(tx *gorm.DB) error {
	c.Label = fmt.Sprintf("%s c. %d", shortID(c.LineID), c.Sequence)
	return nil
}

// Width is the horizontal extent of the character on the page image.
func (c *Character) Width() int {
	return c.XMax - c.XMin
}

// Height is the vertical extent, inherited from the parent line when the
// character does not record its own.
func (c *Character) Height(line *Line) int {
	if c.YMin != nil && c.YMax != nil {
		return *c.YMax - *c.YMin
	}
	return line.Height()
}

// Box computes the character's absolute region on the line's parent page
// image. The y origin falls back to the line's when not recorded locally.
func (c *Character) Box(line *Line) iiif.Box {
	y := line.YMin
	if c.YMin != nil {
		y = *c.YMin
	}
	return iiif.Box{
		X: max(c.XMin, 0),
		Y: max(y, 0),
		W: c.Width(),
		H: c.Height(line),
	}
}

// User is a curator account that owns character groupings.
type User struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username string `gorm:"size:150;uniqueIndex;not null" json:"username"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = newID()
	}
	return nil
}

// CharacterGrouping is a user-authored free-form bag of characters,
// orthogonal to the run hierarchy, for ad hoc curatorial tagging.
type CharacterGrouping struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Label       string    `gorm:"size:200;uniqueIndex;not null" json:"label"`
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedByID string    `gorm:"index;not null" json:"created_by"`
	CreatedAt   time.Time `gorm:"index" json:"date_created"`

	Characters []Character `gorm:"many2many:grouping_characters" json:"-"`
}

func (g *CharacterGrouping) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = newID()
	}
	return nil
}

package domain

// Document keys of the content store
const (
	DocumentProjects = "projects"
	DocumentAbout    = "about"
	DocumentHome     = "home"
)

// DocumentKeys lists every content document in export order
var DocumentKeys = []string{DocumentProjects, DocumentAbout, DocumentHome}

// Project is one portfolio case study
type Project struct {
	ID          string         `json:"id" validate:"required,max=120"`
	Title       string         `json:"title" validate:"required,max=200"`
	Category    string         `json:"category" validate:"max=200"`
	Thumbnail   string         `json:"thumbnail"`
	Images      []string       `json:"images"`
	Description string         `json:"description"`
	Year        string         `json:"year" validate:"max=20"`
	Client      string         `json:"client" validate:"max=200"`
	Role        string         `json:"role" validate:"max=200"`
	History     []HistoryPhase `json:"history" validate:"dive"`
}

// HistoryPhase is a chapter of a project's story
type HistoryPhase struct {
	Phase   string         `json:"phase" validate:"required,max=200"`
	Content string         `json:"content"`
	Images  []HistoryImage `json:"images,omitempty"`
}

type HistoryImage struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// ContentBlockType enumerates the blocks the about page editor supports
type ContentBlockType string

const (
	BlockH1      ContentBlockType = "h1"
	BlockH2      ContentBlockType = "h2"
	BlockBody    ContentBlockType = "body"
	BlockImage   ContentBlockType = "image"
	BlockDivider ContentBlockType = "divider"
	BlockSpacer  ContentBlockType = "spacer"
)

// ContentBlock is one block of free-form about page content.
// For image blocks Content holds the image reference.
type ContentBlock struct {
	ID      string           `json:"id" validate:"required"`
	Type    ContentBlockType `json:"type" validate:"required,oneof=h1 h2 body image divider spacer"`
	Content string           `json:"content"`
	Caption string           `json:"caption,omitempty"`
}

type Skills struct {
	Design      []string `json:"design"`
	Tools       []string `json:"tools"`
	Development []string `json:"development"`
}

// AboutPage is the about document
type AboutPage struct {
	Content      []ContentBlock `json:"content" validate:"dive"`
	ProfileImage string         `json:"profileImage"`
	Skills       *Skills        `json:"skills,omitempty"`
}

// HomeHeader is the home document
type HomeHeader struct {
	Title    string `json:"title" validate:"required,max=200"`
	Subtitle string `json:"subtitle" validate:"max=1000"`
}

// SiteData is the exported data.json the static site reads at load time
type SiteData struct {
	Timestamp string     `json:"timestamp"`
	Projects  []Project  `json:"projects"`
	About     AboutPage  `json:"about"`
	Home      HomeHeader `json:"home"`
}

// DefaultProjects returns the projects document used before anything has been saved
func DefaultProjects() []Project {
	return []Project{}
}

// DefaultAbout returns the about document used before anything has been saved
func DefaultAbout() AboutPage {
	return AboutPage{
		Content: []ContentBlock{
			{ID: "1", Type: BlockH1, Content: "About Me"},
			{ID: "2", Type: BlockBody, Content: "Product Designer"},
		},
		Skills: &Skills{Design: []string{}, Tools: []string{}, Development: []string{}},
	}
}

// DefaultHome returns the home header used before anything has been saved
func DefaultHome() HomeHeader {
	return HomeHeader{
		Title:    "Product Designer",
		Subtitle: "Creating meaningful digital experiences that solve real problems and delight users.",
	}
}

// ImageVisitor receives a pointer to an image reference field. slot names the
// role of the image within its project ("thumbnail", "image", "history") or the
// about page ("profile", "block").
type ImageVisitor func(owner, slot string, ref *string)

// VisitImages calls fn for every image reference held by the project
func (p *Project) VisitImages(fn ImageVisitor) {
	if p.Thumbnail != "" {
		fn(p.ID, "thumbnail", &p.Thumbnail)
	}
	for i := range p.Images {
		if p.Images[i] != "" {
			fn(p.ID, "image", &p.Images[i])
		}
	}
	for i := range p.History {
		for j := range p.History[i].Images {
			if p.History[i].Images[j].URL != "" {
				fn(p.ID, "history", &p.History[i].Images[j].URL)
			}
		}
	}
}

// VisitImages calls fn for the profile image and every image block
func (a *AboutPage) VisitImages(fn ImageVisitor) {
	if a.ProfileImage != "" {
		fn("about", "profile", &a.ProfileImage)
	}
	for i := range a.Content {
		if a.Content[i].Type == BlockImage && a.Content[i].Content != "" {
			fn("about", "block", &a.Content[i].Content)
		}
	}
}

// VisitImages walks every image reference in the exported site
func (s *SiteData) VisitImages(fn ImageVisitor) {
	for i := range s.Projects {
		s.Projects[i].VisitImages(fn)
	}
	s.About.VisitImages(fn)
}

// CompactImages drops image entries whose reference was cleared
func (p *Project) CompactImages() {
	if p.Images != nil {
		kept := p.Images[:0]
		for _, ref := range p.Images {
			if ref != "" {
				kept = append(kept, ref)
			}
		}
		p.Images = kept
	}
	for i := range p.History {
		if p.History[i].Images == nil {
			continue
		}
		kept := p.History[i].Images[:0]
		for _, img := range p.History[i].Images {
			if img.URL != "" {
				kept = append(kept, img)
			}
		}
		p.History[i].Images = kept
	}
}

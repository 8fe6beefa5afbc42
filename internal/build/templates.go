package build

import (
	"encoding/xml"
	"html/template"

	"github.com/faircamp-go/faircamp/internal/catalog"
)

type indexPage struct {
	Title    string
	Text     string
	Releases []catalog.Release
	Artists  []catalog.Artist
}

type artistPage struct {
	Name string
	Text string
}

type releasePage struct {
	Title      string
	ArtistList string
	Tracks     []trackPage
}

type trackPage struct {
	Index      int
	Title      string
	AudioURL   string
	ArtistList string
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Text}}</p>
<h2>Releases</h2>
<ul>
{{range .Releases}}{{if not .Unlisted}}<li><a href="{{.Permalink.Slug}}/">{{.Title}}</a></li>
{{end}}{{end}}</ul>
<h2>Artists</h2>
<ul>
{{range .Artists}}<li><a href="{{.Permalink.Slug}}/">{{.Name}}</a></li>
{{end}}</ul>
</body>
</html>
`))

var artistTemplate = template.Must(template.New("artist").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Name}}</title></head>
<body>
<h1>{{.Name}}</h1>
<p>{{.Text}}</p>
</body>
</html>
`))

var releaseTemplate = template.Must(template.New("release").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.ArtistList}}</p>
<ol>
{{range .Tracks}}<li><a href="{{.Index}}/">{{.Title}}</a></li>
{{end}}</ol>
</body>
</html>
`))

var trackTemplate = template.Must(template.New("track").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.ArtistList}}</p>
{{if .AudioURL}}<audio controls src="/{{.AudioURL}}"></audio>{{end}}
</body>
</html>
`))

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Link        string    `xml:"link"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title string `xml:"title"`
	Link  string `xml:"link"`
	GUID  string `xml:"guid"`
}

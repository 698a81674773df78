package main

import "html/template"

// resolutionOrder fixes the display order; the Resolutions map is
// unordered.
var resolutionOrder = []string{"4k", "2k", "1080p", "720p", "480p", "360p", "240p", "144p"}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>ytgrab</title>
</head>
<body>
  <h1>ytgrab</h1>

  <h2>Audio</h2>
  <form method="post" action="/download_audio">
    <input type="text" name="url" placeholder="YouTube URL" size="60" required>
    <select name="format">
      {{range $format, $bitrates := .AudioFormats}}<option value="{{$format}}">{{$format}}</option>{{end}}
    </select>
    <input type="text" name="bitrate" placeholder="bitrate (kbps)" size="10">
    <input type="text" name="start_time" placeholder="start (MM:SS)" size="10">
    <input type="text" name="end_time" placeholder="end (MM:SS)" size="10">
    <button type="submit">Download audio</button>
  </form>
  <p>Bitrates: {{range $format, $bitrates := .AudioFormats}}{{$format}}: {{$bitrates}} {{end}}</p>

  <h2>Video</h2>
  <form method="post" action="/download_video">
    <input type="text" name="url" placeholder="YouTube URL" size="60" required>
    <select name="format">
      {{range .VideoFormats}}<option value="{{.}}">{{.}}</option>{{end}}
    </select>
    <select name="resolution">
      {{range .Resolutions}}<option value="{{.}}">{{.}}</option>{{end}}
    </select>
    <label><input type="checkbox" name="mute"> mute</label>
    <button type="submit">Download video</button>
  </form>
</body>
</html>
`))

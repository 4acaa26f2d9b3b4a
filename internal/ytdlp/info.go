package ytdlp

import (
	"encoding/json"
	"fmt"
)

// Info is the subset of the `yt-dlp -J` document vidgrab reads.
type Info struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Formats []InfoFormat `json:"formats"`
}

type InfoFormat struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	FormatNote string `json:"format_note"`
	VCodec     string `json:"vcodec"`
	ACodec     string `json:"acodec"`
}

func ParseInfo(data []byte) (Info, error) {
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("parse yt-dlp info: %w", err)
	}
	return info, nil
}

package version

import (
	"encoding/json"
	"log"
	"runtime/debug"
)

type Info struct {
	Commit   string `json:"commit"`
	Time     string `json:"time"`
	Modified bool   `json:"modified,omitempty"`
}

// Build is read from the vcs settings embedded by the go toolchain.
var Build = func() Info {
	v := Info{}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				v.Commit = setting.Value
			case "vcs.time":
				v.Time = setting.Value
			case "vcs.modified":
				v.Modified = setting.Value == "true"
			}
		}
	}
	return v
}()

var Version = func() string {
	b, err := json.Marshal(&Build)
	if err != nil {
		log.Fatal(err)
	}

	return string(b)
}()

package buildversion

import (
	"fmt"
	"runtime/debug"
)

// MainPkgVersion can be set at link time with
// -ldflags "-X github.com/edgeprobe/edgedns/contrib/buildversion.MainPkgVersion=v1.2.3".
var MainPkgVersion string

type Info struct {
	Version   string
	Revision  string
	Modified  bool
	GoVersion string
}

func (i Info) String() string {
	if i.GoVersion == "" {
		return i.Version
	}
	return fmt.Sprintf("%s (%s)", i.Version, i.GoVersion)
}

func getBuildSetting(info *debug.BuildInfo, key string) string {
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// ResolveInfo derives version details for pkg from build info.  pkg may be
// the main module or one of its dependencies.
func ResolveInfo(buildInfo *debug.BuildInfo, pkg string) Info {
	if buildInfo == nil {
		return Info{Version: "nobuilddata"}
	}

	info := Info{GoVersion: buildInfo.GoVersion}

	if buildInfo.Main.Path == pkg {
		info.Revision = getBuildSetting(buildInfo, "vcs.revision")
		info.Modified = getBuildSetting(buildInfo, "vcs.modified") == "true"

		switch {
		case MainPkgVersion != "":
			info.Version = MainPkgVersion
		case buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)":
			info.Version = buildInfo.Main.Version
		case info.Revision != "" && info.Modified:
			info.Version = info.Revision + "+local"
		case info.Revision != "":
			info.Version = info.Revision
		default:
			info.Version = "devel"
		}
		return info
	}

	for _, dep := range buildInfo.Deps {
		if dep.Path == pkg {
			if dep.Replace != nil {
				info.Version = dep.Replace.Version
			} else {
				info.Version = dep.Version
			}
			return info
		}
	}

	info.Version = "notfound"
	return info
}

func GetInfo(pkg string) Info {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return ResolveInfo(nil, pkg)
	}
	return ResolveInfo(buildInfo, pkg)
}

package regiondef

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/edgeprobe/edgedns/edgeconfig"
)

// Resolve expands the bulk region list and then applies the per-region
// overrides.  Overrides always replace a bulk entry of the same region;
// overrides for unknown regions are appended in sorted key order.
func Resolve(cfg edgeconfig.Config_Regions) ([]RegionTarget, error) {
	baseDomain := strings.Trim(strings.TrimSpace(cfg.BaseDomain), ".")
	if baseDomain == "" {
		return nil, ConfigError{Reason: "base domain is not set"}
	}

	baseURL := NormalizeBaseURL(cfg.BaseURL)
	if baseURL == "" {
		return nil, ConfigError{Reason: "base API URL is not set"}
	}

	var targets []RegionTarget
	indexOf := make(map[string]int)

	put := func(target RegionTarget) {
		if idx, ok := indexOf[target.Region]; ok {
			targets[idx] = target
			return
		}
		indexOf[target.Region] = len(targets)
		targets = append(targets, target)
	}

	for _, region := range strings.Split(cfg.Bulk, ",") {
		region = strings.ToLower(strings.TrimSpace(region))
		if region == "" {
			continue
		}

		put(RegionTarget{
			Region:     region,
			SourceURL:  baseURL + "/" + region,
			RecordName: region + "." + baseDomain,
		})
	}

	overrides := make(map[string]string, len(cfg.Overrides))
	for key, value := range cfg.Overrides {
		region := strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if region == "" || value == "" {
			continue
		}
		overrides[region] = value
	}

	overrideRegions := make([]string, 0, len(overrides))
	for region := range overrides {
		overrideRegions = append(overrideRegions, region)
	}
	sort.Strings(overrideRegions)

	for _, region := range overrideRegions {
		put(RegionTarget{
			Region:     region,
			SourceURL:  OverrideURL(baseURL, overrides[region]),
			RecordName: region + "." + baseDomain,
		})
	}

	if len(targets) == 0 {
		return nil, ConfigError{Reason: "no regions configured"}
	}

	for _, target := range targets {
		if !ValidRegionID(target.Region) {
			return nil, ConfigError{Reason: fmt.Sprintf("invalid region id %q", target.Region)}
		}
		if _, err := url.ParseRequestURI(target.SourceURL); err != nil {
			return nil, ConfigError{
				Reason: fmt.Sprintf("invalid source url for region %s: %s", target.Region, err),
			}
		}
	}

	return targets, nil
}

// ValidRegionID reports whether region can safely name result files.
func ValidRegionID(region string) bool {
	return region != "" &&
		region != "." &&
		!strings.ContainsAny(region, `/\`) &&
		!strings.Contains(region, "..")
}

// NormalizeBaseURL trims the base URL and defaults it to https when no
// scheme was given.
func NormalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return ""
	}
	if !hasHTTPScheme(baseURL) {
		baseURL = "https://" + baseURL
	}
	return baseURL
}

// OverrideURL returns value if it is a complete URL, otherwise value is
// treated as a path below baseURL.
func OverrideURL(baseURL, value string) string {
	if hasHTTPScheme(value) {
		return value
	}
	return baseURL + "/" + strings.TrimLeft(value, "/")
}

func hasHTTPScheme(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Filter keeps only the named regions, preserving resolution order.
func Filter(targets []RegionTarget, regions []string) ([]RegionTarget, error) {
	if len(regions) == 0 {
		return targets, nil
	}

	wanted := make(map[string]bool, len(regions))
	for _, region := range regions {
		wanted[strings.ToLower(strings.TrimSpace(region))] = true
	}

	var out []RegionTarget
	for _, target := range targets {
		if wanted[target.Region] {
			out = append(out, target)
			delete(wanted, target.Region)
		}
	}

	if len(wanted) > 0 {
		var missing []string
		for region := range wanted {
			missing = append(missing, region)
		}
		sort.Strings(missing)
		return nil, ConfigError{Reason: "unknown regions: " + strings.Join(missing, ",")}
	}

	return out, nil
}

// Find returns the target for a single region.
func Find(targets []RegionTarget, region string) (RegionTarget, error) {
	found, err := Filter(targets, []string{region})
	if err != nil {
		return RegionTarget{}, err
	}
	return found[0], nil
}

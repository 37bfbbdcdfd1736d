package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Catalog is the static package table. Quantity prices are keyed
// order type -> platform -> package label; bundles are platform independent.
type Catalog struct {
	Quantity map[OrderType]map[Platform]map[string]int64 `mapstructure:"QUANTITY"`
	Bundles  map[string]Quote                            `mapstructure:"BUNDLES"`
	Rewards  map[Platform]map[TaskType]int64             `mapstructure:"REWARDS"`
}

// Resolve maps an order type, platform and package (quantity or bundle tier) to units and price.
// Only exact entries resolve.
func (c *Catalog) Resolve(orderType OrderType, platform Platform, pkg string) (Quote, error) {
	if _, err := ParsePlatform(string(platform)); err != nil {
		return Quote{}, fmt.Errorf("%w: platform %q", ErrInvalidCatalogEntry, platform)
	}

	label := strings.ToLower(strings.TrimSpace(pkg))

	switch orderType {
	case Bundle:
		q, ok := c.Bundles[label]
		if !ok {
			return Quote{}, fmt.Errorf("%w: bundle tier %q", ErrInvalidCatalogEntry, pkg)
		}
		return q, nil
	case Followers, Likes, Comments:
		price, ok := c.Quantity[orderType][platform][label]
		if !ok {
			return Quote{}, fmt.Errorf("%w: %s %s %q", ErrInvalidCatalogEntry, orderType, platform, pkg)
		}
		var units int
		if _, err := fmt.Sscanf(label, "%d", &units); err != nil || units <= 0 {
			return Quote{}, fmt.Errorf("%w: quantity %q", ErrInvalidCatalogEntry, pkg)
		}
		q := Quote{Price: price}
		switch orderType {
		case Followers:
			q.FollowUnits = units
		case Likes:
			q.LikeUnits = units
		case Comments:
			q.CommentUnits = units
		}
		return q, nil
	default:
		return Quote{}, fmt.Errorf("%w: order type %q", ErrInvalidCatalogEntry, orderType)
	}
}

// Reward is the amount credited to an engager for one accepted task.
func (c *Catalog) Reward(platform Platform, task TaskType) (int64, error) {
	amount, ok := c.Rewards[platform][task]
	if !ok {
		return 0, fmt.Errorf("%w: reward %s/%s", ErrInvalidCatalogEntry, platform, task)
	}
	return amount, nil
}

// Packages lists the package labels offered for an order type on a platform, smallest first.
func (c *Catalog) Packages(orderType OrderType, platform Platform) []string {
	var out []string
	if orderType == Bundle {
		for _, tier := range BundleTiers {
			if _, ok := c.Bundles[tier]; ok {
				out = append(out, tier)
			}
		}
		return out
	}
	for label := range c.Quantity[orderType][platform] {
		out = append(out, label)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i])
		b, _ := strconv.Atoi(out[j])
		return a < b
	})
	return out
}

// Load reads a catalogue file, falling back to Default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var c Catalog
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if len(c.Bundles) == 0 && len(c.Quantity) == 0 {
		return nil, fmt.Errorf("catalog %s is empty", path)
	}

	zap.L().Info("catalog loaded", zap.String("path", path), zap.Int("bundles", len(c.Bundles)))
	return &c, nil
}

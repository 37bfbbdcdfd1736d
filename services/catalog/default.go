package catalog

var BundleTiers = []string{"starter", "pro", "elite"}

func Default() *Catalog {
	return &Catalog{
		Quantity: map[OrderType]map[Platform]map[string]int64{
			Followers: {
				Instagram: {"10": 1200, "25": 2800, "50": 5500, "100": 10500},
				Facebook:  {"10": 1000, "25": 2400, "50": 4600, "100": 9000},
				TikTok:    {"10": 1100, "25": 2600, "50": 5000, "100": 9800},
				Twitter:   {"10": 1000, "25": 2400, "50": 4600, "100": 9000},
			},
			Likes: {
				Instagram: {"10": 600, "25": 1400, "50": 2700, "100": 5200},
				Facebook:  {"10": 500, "25": 1200, "50": 2300, "100": 4500},
				TikTok:    {"10": 550, "25": 1300, "50": 2500, "100": 4800},
				Twitter:   {"10": 500, "25": 1200, "50": 2300, "100": 4500},
			},
			Comments: {
				Instagram: {"10": 1500, "25": 3600, "50": 7000, "100": 13500},
				Facebook:  {"10": 1300, "25": 3100, "50": 6000, "100": 11500},
				TikTok:    {"10": 1400, "25": 3400, "50": 6500, "100": 12500},
				Twitter:   {"10": 1300, "25": 3100, "50": 6000, "100": 11500},
			},
		},
		Bundles: map[string]Quote{
			"starter": {FollowUnits: 10, LikeUnits: 20, CommentUnits: 5, Price: 2500},
			"pro":     {FollowUnits: 50, LikeUnits: 100, CommentUnits: 20, Price: 11000},
			"elite":   {FollowUnits: 100, LikeUnits: 250, CommentUnits: 50, Price: 24000},
		},
		Rewards: map[Platform]map[TaskType]int64{
			Instagram: {Follow: 20, Like: 10, Comment: 30},
			Facebook:  {Follow: 15, Like: 8, Comment: 25},
			TikTok:    {Follow: 20, Like: 10, Comment: 30},
			Twitter:   {Follow: 15, Like: 8, Comment: 25},
		},
	}
}

package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/usecases"
	"github.com/samirrijal/dineradar/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to our services. Object fields
// resolve through the domain types' json tags.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	attributesType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Attributes",
		Fields: graphql.Fields{
			"quietness":             &graphql.Field{Type: graphql.Int},
			"atmosphere":            &graphql.Field{Type: graphql.Int},
			"service_speed":         &graphql.Field{Type: graphql.Int},
			"cleanliness":           &graphql.Field{Type: graphql.Int},
			"kid_friendly":          &graphql.Field{Type: graphql.Boolean},
			"outdoor_seating":       &graphql.Field{Type: graphql.Boolean},
			"wheelchair_accessible": &graphql.Field{Type: graphql.Boolean},
			"tags":                  &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	restaurantType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Restaurant",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"name":         &graphql.Field{Type: graphql.String},
			"address":      &graphql.Field{Type: graphql.String},
			"postal_code":  &graphql.Field{Type: graphql.String},
			"coordinates":  &graphql.Field{Type: geoPointType},
			"cuisine_type": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"price_range":  &graphql.Field{Type: graphql.Int},
			"rating":       &graphql.Field{Type: graphql.Float},
			"attributes":   &graphql.Field{Type: attributesType},
			"provenance":   &graphql.Field{Type: graphql.String},
			"distance_km":  &graphql.Field{Type: graphql.Float},
		},
	})

	recommendationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Recommendation",
		Fields: graphql.Fields{
			"restaurant":     &graphql.Field{Type: restaurantType},
			"match_score":    &graphql.Field{Type: graphql.Float},
			"match_type":     &graphql.Field{Type: graphql.String},
			"reasons":        &graphql.Field{Type: graphql.NewList(graphql.String)},
			"adjusted_score": &graphql.Field{Type: graphql.Float},
		},
	})

	locationArgs := graphql.FieldConfigArgument{
		"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"lng":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"radius_km": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 10.0},
		"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
		"cuisine":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
		"query":     &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"restaurants": &graphql.Field{
				Type:        graphql.NewList(restaurantType),
				Description: "Restaurants near a location, nearest first, optionally clipped to a bounding box",
				Args: withArgs(locationArgs, graphql.FieldConfigArgument{
					"min_lat": &graphql.ArgumentConfig{Type: graphql.Float},
					"min_lng": &graphql.ArgumentConfig{Type: graphql.Float},
					"max_lat": &graphql.ArgumentConfig{Type: graphql.Float},
					"max_lng": &graphql.ArgumentConfig{Type: graphql.Float},
				}),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					list, err := deps.Restaurants.Nearby(p.Context, nearbyFromArgs(p.Args))
					if err != nil {
						return nil, err
					}
					if b, ok := boundsFromArgs(p.Args); ok {
						list = usecases.InBounds(list, geospatial.Bound(b.MinLat, b.MinLng, b.MaxLat, b.MaxLng))
					}
					return list, nil
				},
			},
			"restaurant": &graphql.Field{
				Type:        restaurantType,
				Description: "Get a persisted restaurant by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Restaurants.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"topPicks": &graphql.Field{
				Type:        graphql.NewList(recommendationType),
				Description: "The day's top recommendations near a location",
				Args: withArgs(locationArgs, graphql.FieldConfigArgument{
					"k":         &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"date":      &graphql.ArgumentConfig{Type: graphql.String},
					"favorites": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
					"friends":   &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
					"cuisines":  &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
				}),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					day := time.Now()
					if v, ok := p.Args["date"].(string); ok && v != "" {
						d, err := time.ParseInLocation("2006-01-02", v, time.Local)
						if err != nil {
							return nil, err
						}
						day = d
					}
					prefs := domain.Preferences{
						FavoriteIDs: stringList(p.Args["favorites"]),
						FriendIDs:   stringList(p.Args["friends"]),
						Cuisines:    stringList(p.Args["cuisines"]),
					}
					return deps.Restaurants.TopPicks(p.Context, nearbyFromArgs(p.Args), prefs, day, p.Args["k"].(int))
				},
			},
			"geocode": &graphql.Field{
				Type:        geoPointType,
				Description: "Resolve a postal code to a map center",
				Args: graphql.FieldConfigArgument{
					"postal_code": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Restaurants.ResolvePostalCode(p.Context, p.Args["postal_code"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func withArgs(base, extra graphql.FieldConfigArgument) graphql.FieldConfigArgument {
	out := make(graphql.FieldConfigArgument, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func nearbyFromArgs(args map[string]interface{}) usecases.NearbyQuery {
	q := usecases.NearbyQuery{
		Center: domain.GeoPoint{Lat: args["lat"].(float64), Lng: args["lng"].(float64)},
	}
	q.RadiusKm, _ = args["radius_km"].(float64)
	q.Limit, _ = args["limit"].(int)
	q.Cuisine, _ = args["cuisine"].(string)
	q.Query, _ = args["query"].(string)
	return q
}

func boundsFromArgs(args map[string]interface{}) (domain.Bounds, bool) {
	minLat, ok1 := args["min_lat"].(float64)
	minLng, ok2 := args["min_lng"].(float64)
	maxLat, ok3 := args["max_lat"].(float64)
	maxLng, ok4 := args["max_lng"].(float64)
	b := domain.Bounds{MinLat: minLat, MinLng: minLng, MaxLat: maxLat, MaxLng: maxLng}
	return b, ok1 && ok2 && ok3 && ok4 && b.Valid()
}

func stringList(v interface{}) []string {
	items, _ := v.([]interface{})
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}

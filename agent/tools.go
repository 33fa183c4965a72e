package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/etnz/folio"
	"github.com/etnz/folio/analytics"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/docs"
	"github.com/etnz/folio/mutation"
	"github.com/etnz/folio/simulate"
)

// SchemaVersion versions the tool catalog. Changing a required field is a breaking change and
// bumps it.
const SchemaVersion = "2025-06.1"

// NavigateTo is the navigation tool.
const NavigateTo = "navigate_to"

// Routes lists the pages navigate_to can open.
var Routes = []string{"/", "/assets", "/transactions", "/watchlist", "/grants", "/net-worth", "/tax-lots"}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

var dateHelp = `Dates use the YYYY-MM-DD format:

` + must(docs.GetTopic("dates"))

func str(desc string) *Schema  { return &Schema{Type: "string", Description: desc} }
func num(desc string) *Schema  { return &Schema{Type: "number", Description: desc} }
func integer(d string) *Schema { return &Schema{Type: "integer", Description: d} }
func boolean(d string) *Schema { return &Schema{Type: "boolean", Description: d} }
func strs(desc string) *Schema {
	return &Schema{Type: "array", Description: desc, Items: &Schema{Type: "string"}}
}
func object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required}
}

// argument readers. Missing arguments yield the zero value; mistyped ones an error.

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q is not a string as expected but %T", name, v)
	}
	return strings.TrimSpace(s), nil
}

func stringsArg(args map[string]any, name string) ([]string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch v := v.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []string{strings.TrimSpace(v)}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q must hold strings, got %T", name, item)
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out, nil
	}
	return nil, fmt.Errorf("argument %q is not a list of strings as expected but %T", name, v)
}

func numberArg(args map[string]any, name string) (float64, bool, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch v := v.(type) {
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	}
	return 0, false, fmt.Errorf("argument %q is not a number as expected but %T", name, v)
}

func boolArg(args map[string]any, name string, def bool) (bool, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, fmt.Errorf("argument %q is not a boolean as expected but %T", name, v)
	}
	return b, nil
}

func dateArg(args map[string]any, name string) (date.Date, error) {
	s, err := stringArg(args, name)
	if err != nil || s == "" {
		return date.Date{}, err
	}
	d, err := date.Parse(s)
	if err != nil {
		return date.Date{}, fmt.Errorf("argument %q must be a valid date got %q. Below is the doc about the format date\n\n%s", name, s, must(docs.GetTopic("dates")))
	}
	return d, nil
}

var GetPortfolioSummary = &Func{
	Decl: Tool{
		Name: "get_portfolio_summary",
		Description: `Totals of the portfolio: net worth, stock value, cash-like value, stock allocation,
unrealized stock gain, and the five largest holdings with their allocation.`,
		Parameters: object(map[string]*Schema{}),
	},
	Func: func(ctx context.Context, env Env, args map[string]any) (any, error) {
		return analytics.PortfolioSummary(env.Snapshot), nil
	},
}

var GetPositions = &Func{
	Decl: Tool{
		Name:        "get_positions",
		Description: "Lists assets with their value, shares, cost basis and unrealized gain, largest first. Stocks with RSU grants also report vested and unvested grant shares.",
		Parameters: object(map[string]*Schema{
			"symbols":    strs("Only stock positions on these ticker symbols."),
			"assetTypes": strs("Only assets of these types: " + assetTypeList() + "."),
			"locations":  strs("Only assets held at these locations (account or institution names)."),
			"limit":      integer("Maximum number of rows, 500 at most."),
		}),
	},
	Func: func(ctx context.Context, env Env, args map[string]any) (any, error) {
		var filter analytics.PositionFilter
		var err error
		if filter.Symbols, err = stringsArg(args, "symbols"); err != nil {
			return nil, err
		}
		types, err := stringsArg(args, "assetTypes")
		if err != nil {
			return nil, err
		}
		for _, s := range types {
			t, err := folio.ParseAssetType(s)
			if err != nil {
				return nil, err
			}
			filter.AssetTypes = append(filter.AssetTypes, t)
		}
		if filter.Locations, err = stringsArg(args, "locations"); err != nil {
			return nil, err
		}
		limit, _, err := numberArg(args, "limit")
		if err != nil {
			return nil, err
		}
		filter.Limit = int(limit)
		rows := analytics.Positions(env.Snapshot, filter)
		return map[string]any{"positions": rows, "count": len(rows)}, nil
	},
}

var GetTransactions = &Func{
	Decl: Tool{
		Name:        "get_transactions",
		Description: "Lists tax lots (purchases and vests) with their cost and capital-gains status, most recent first.",
		Parameters: object(map[string]*Schema{
			"symbols":   strs("Only lots of these ticker symbols."),
			"subtypes":  strs("Only lots of these acquisition mechanisms: Market, ESPP, RSU."),
			"startDate": str("Only lots bought on or after this day. " + dateHelp),
			"endDate":   str("Only lots bought on or before this day. " + dateHelp),
			"limit":     integer("Maximum number of rows, 1000 at most."),
		}),
	},
	Func: func(ctx context.Context, env Env, args map[string]any) (any, error) {
		var filter analytics.TransactionFilter
		var err error
		if filter.Symbols, err = stringsArg(args, "symbols"); err != nil {
			return nil, err
		}
		kinds, err := stringsArg(args, "subtypes")
		if err != nil {
			return nil, err
		}
		for _, s := range kinds {
			k, err := folio.ParseSubtypeKind(s)
			if err != nil {
				return nil, err
			}
			filter.Subtypes = append(filter.Subtypes, k)
		}
		if filter.Range.From, err = dateArg(args, "startDate"); err != nil {
			return nil, err
		}
		if filter.Range.To, err = dateArg(args, "endDate"); err != nil {
			return nil, err
		}
		limit, _, err := numberArg(args, "limit")
		if err != nil {
			return nil, err
		}
		filter.Limit = int(limit)
		rows := analytics.Transactions(env.Snapshot, env.Today, filter)
		return map[string]any{"transactions": rows, "count": len(rows)}, nil
	},
}

var GetNetWorthTimeseries = &Func{
	Decl: Tool{
		Name:        "get_net_worth_timeseries",
		Description: "Recorded net-worth points over a window ending at the latest point.",
		Parameters: object(map[string]*Schema{
			"range": {Type: "string", Description: "Window of the series, ALL by default.", Enum: []string{"1M", "3M", "6M", "1Y", "ALL"}},
		}),
	},
	Func: func(ctx context.Context, env Env, args map[string]any) (any, error) {
		s, err := stringArg(args, "range")
		if err != nil {
			return nil, err
		}
		r, err := analytics.ParseRange(s)
		if err != nil {
			return nil, err
		}
		return map[string]any{"range": r, "points": analytics.NetWorthTimeseries(&env.Snapshot.History, r)}, nil
	},
}

var GetExposureBreakdown = &Func{
	Decl: Tool{
		Name: "get_exposure_breakdown",
		Description: `Splits the portfolio value along a dimension. With the theme dimension a stock's value is
shared equally between the themes of its ticker, unthemed stocks go to "Uncategorized".`,
		Parameters: object(map[string]*Schema{
			"dimension":   {Type: "string", Description: "Dimension to bucket by.", Enum: []string{"ticker", "theme", "asset_type", "location"}},
			"includeCash": boolean("Include cash-like assets, true by default."),
		}, "dimension"),
	},
	Func: func(ctx context.Context, env Env, args map[string]any) (any, error) {
		s, err := stringArg(args, "dimension")
		if err != nil {
			return nil, err
		}
		dim, err := analytics.ParseDimension(s)
		if err != nil {
			return nil, err
		}
		includeCash, err := boolArg(args, "includeCash", true)
		if err != nil {
			return nil, err
		}
		return analytics.ExposureBreakdown(env.Snapshot, dim, includeCash)
	},
}

var AnalyzeTaxLots = &Func{
	Decl: Tool{
		Name: "analyze_tax_lots",
		Description: `Analyzes stock lots: tax-loss harvest candidates, lots about to become long term, and the
top winners and losers by unrealized gain.`,
		Parameters: object(map[string]*Schema{
			"symbols":              strs("Only lots of these ticker symbols."),
			"harvestThresholdPct":  num("Lots whose gain percentage is at or below this value are harvest candidates, -5 by default."),
			"upcomingLongTermDays": integer("Window in days for upcoming long-term promotions, 45 by default."),
		}),
	},
	Func: func(ctx context.Context, env Env, args map[string]any) (any, error) {
		opts := analytics.DefaultTaxLotOptions()
		var err error
		if opts.Symbols, err = stringsArg(args, "symbols"); err != nil {
			return nil, err
		}
		if v, ok, err := numberArg(args, "harvestThresholdPct"); err != nil {
			return nil, err
		} else if ok {
			opts.HarvestThresholdPct = v
		}
		if v, ok, err := numberArg(args, "upcomingLongTermDays"); err != nil {
			return nil, err
		} else if ok {
			opts.UpcomingLongTermDays = int(v)
		}
		return analytics.TaxLots(env.Snapshot, env.Today, opts), nil
	},
}

var SimulatePortfolioActions = &Func{
	Decl: Tool{
		Name: "simulate_portfolio_actions",
		Description: `Simulates what-if actions on a copy of the portfolio and returns the summary before and
after, the realized gain, and warnings for the actions that could not be applied. Nothing is saved.`,
		Parameters: object(map[string]*Schema{
			"actions": {
				Type:        "array",
				Description: "Actions applied in order.",
				Items: object(map[string]*Schema{
					"type":               {Type: "string", Enum: []string{simulate.Buy, simulate.Sell, simulate.SetPrice, simulate.AddCash, simulate.RemoveCash, simulate.SetCashTotal}},
					"symbol":             str("Ticker symbol, for buy, sell and set_price."),
					"shares":             num("Number of shares, for buy and sell."),
					"price":              num("Price per share. Defaults to the current price."),
					"amount":             num("Cash amount, for cash actions."),
					"useCash":            boolean("Buy with cash, true by default."),
					"moveProceedsToCash": boolean("Credit the sale proceeds to cash, true by default."),
				}, "type"),
			},
		}, "actions"),
	},
	Func: func(ctx context.Context, env Env, args map[string]any) (any, error) {
		raw, _ := args["actions"].([]any)
		return simulate.Run(env.Snapshot, raw), nil
	},
}

var RecommendActionsForGoal = &Func{
	Decl: Tool{
		Name:        "recommend_actions_for_goal",
		Description: "Prioritized recommendations to reach a goal, with suggested trades simulated on a copy of the portfolio.",
		Parameters: object(map[string]*Schema{
			"goal":           {Type: "string", Enum: []string{string(simulate.ReduceConcentration), string(simulate.ImproveDiversification), string(simulate.ReduceTaxBurden), string(simulate.RaiseCashBuffer)}},
			"maxPositionPct": num("Largest acceptable allocation of a single holding, in percent."),
			"minPositions":   integer("Smallest acceptable number of stock positions."),
			"targetCashPct":  num("Target cash-like allocation, in percent."),
		}, "goal"),
	},
	Func: func(ctx context.Context, env Env, args map[string]any) (any, error) {
		s, err := stringArg(args, "goal")
		if err != nil {
			return nil, err
		}
		goal, err := simulate.ParseGoal(s)
		if err != nil {
			return nil, err
		}
		var params simulate.Params
		if params.MaxPositionPct, _, err = numberArg(args, "maxPositionPct"); err != nil {
			return nil, err
		}
		minPositions, _, err := numberArg(args, "minPositions")
		if err != nil {
			return nil, err
		}
		params.MinPositions = int(minPositions)
		if params.TargetCashPct, _, err = numberArg(args, "targetCashPct"); err != nil {
			return nil, err
		}
		return simulate.Recommend(env.Snapshot, env.Today, goal, params)
	},
}

// ReadTools are the functions executed during the read rounds.
var ReadTools = []Function{
	GetPortfolioSummary,
	GetPositions,
	GetTransactions,
	GetNetWorthTimeseries,
	GetExposureBreakdown,
	AnalyzeTaxLots,
	SimulatePortfolioActions,
	RecommendActionsForGoal,
}

// IsRead reports whether name is a read tool.
func IsRead(name string) bool {
	for _, f := range ReadTools {
		if f.Declaration().Name == name {
			return true
		}
	}
	return false
}

func assetTypeList() string {
	names := make([]string, len(folio.AssetTypes))
	for i, t := range folio.AssetTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

var lotSchema = object(map[string]*Schema{
	"purchaseDate": str("Day the lot was bought. " + dateHelp),
	"count":        num("Number of shares sold out of the lots bought that day."),
}, "purchaseDate", "count")

// WriteTools declare the writes. They are never executed by the orchestrator: each call becomes
// a confirmation.
var WriteTools = []Tool{
	{
		Name:        string(mutation.AddStockTransaction),
		Description: "Records a purchase or a vest of shares in an account.",
		Parameters: object(map[string]*Schema{
			"ticker":       str("Ticker symbol."),
			"account":      str("Account (location) holding the shares."),
			"assetName":    str("Name of the stock asset, the ticker by default."),
			"subtype":      {Type: "string", Enum: []string{string(folio.Market), string(folio.ESPP), string(folio.RSU)}},
			"ownership":    {Type: "string", Enum: []string{string(folio.Individual), string(folio.Joint)}},
			"count":        num("Number of shares."),
			"costPrice":    num("Cost per share."),
			"purchaseDate": str("Day of the purchase or vest. " + dateHelp),
		}, "ticker", "account", "count", "costPrice", "purchaseDate"),
	},
	{
		Name:        string(mutation.AddCashAsset),
		Description: "Creates a non-stock asset (cash, deposit, retirement account...) with its value.",
		Parameters: object(map[string]*Schema{
			"name":      str("Asset name."),
			"assetType": str("One of " + assetTypeList() + ". Cash by default."),
			"location":  str("Institution holding the asset."),
			"ownership": {Type: "string", Enum: []string{string(folio.Individual), string(folio.Joint)}},
			"value":     num("Current value."),
		}, "name", "value"),
	},
	{
		Name:        string(mutation.AddTickerToWatchlist),
		Description: "Tracks a ticker without owning it.",
		Parameters: object(map[string]*Schema{
			"ticker": str("Ticker symbol."),
			"themes": strs("Themes of the ticker."),
		}, "ticker"),
	},
	{
		Name:        string(mutation.AddTickerThemes),
		Description: "Tags an existing ticker with themes.",
		Parameters: object(map[string]*Schema{
			"ticker": str("Ticker symbol."),
			"themes": strs("Themes to add."),
		}, "ticker", "themes"),
	},
	{
		Name:        string(mutation.AddRsuGrant),
		Description: "Records an RSU grant and its vesting schedule.",
		Parameters: object(map[string]*Schema{
			"ticker":      str("Ticker symbol."),
			"account":     str("Account receiving the vested shares."),
			"grantDate":   str("Day of the grant. " + dateHelp),
			"totalShares": num("Number of shares granted."),
			"vestStart":   str("First vesting day."),
			"vestEnd":     str("Last vesting day."),
			"cliffDate":   str("Cliff day, if any."),
		}, "ticker", "account", "grantDate", "totalShares", "vestStart", "vestEnd"),
	},
	{
		Name: string(mutation.SellShares),
		Description: "Sells shares out of the lots bought on given days, and optionally moves the proceeds to a non-stock asset.\n\n" +
			must(docs.GetTopic("sales")),
		Parameters: object(map[string]*Schema{
			"ticker":         str("Ticker symbol."),
			"sourceAccount":  str("Account (asset or location name) holding the shares."),
			"lots":           {Type: "array", Description: "Lots sold. Use either lots or purchaseDate and count.", Items: lotSchema},
			"purchaseDate":   str("Day the single sold lot was bought."),
			"count":          num("Number of shares of the single sold lot."),
			"salePrice":      num("Price per share."),
			"transferTo":     str("Exact name of the non-stock asset receiving the proceeds."),
			"transferAmount": num("Amount moved, shares sold times sale price by default."),
		}, "ticker", "sourceAccount"),
	},
	{
		Name:        string(mutation.UpdateAssetValue),
		Description: "Sets the value of a non-stock asset.",
		Parameters: object(map[string]*Schema{
			"name":  str("Exact asset name."),
			"value": num("New value."),
		}, "name", "value"),
	},
}

// NavigateTool opens a page of the application.
var NavigateTool = Tool{
	Name:        NavigateTo,
	Description: "Opens a page of the application.",
	Parameters: object(map[string]*Schema{
		"route": {Type: "string", Enum: Routes},
	}, "route"),
}

// Catalog returns every tool, read tools first.
func Catalog() []Tool {
	tools := NewDeclaration(ReadTools)
	tools = append(tools, WriteTools...)
	return append(tools, NavigateTool)
}

/*
Package config manages configuration loading and validation for the drsholding worker.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	   +---------+-----+-----+---------+
	   |         |           |         |
	+--+---+ +---+--+   +----+---+ +---+---------+
	| YAML | | HCL  |   |  JSON  | | environment |
	+------+ +------+   +--------+ |   (viper)   |
	                               +-------------+

🎯 Purpose:
- Reads an optional config file in any registered format
- Lets the deployment's environment variables override it
- Fills defaults and validates

🔄 Flow:
1. Pick a parser by file extension and decode strictly (unknown keys fail)
2. Overlay environment variables (ALMA_API_KEY_2 wins over ALMA_API_KEY)
3. Apply defaults
4. Validate; commands call RequireCatalog, RequireDropbox or RequireBroker for their own needs

🔍 Example:

	cfg, err := config.Load(ctx, "drsholding.yaml")
	if err != nil {
		return err
	}
	if err := cfg.RequireBroker(); err != nil {
		return err
	}
*/
package config

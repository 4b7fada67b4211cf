package form

// Job is checked before a repair job is created or saved
var Job = Schema{
	{Name: "customer_name", Rules: "required", Messages: map[string]string{"required": "Customer name is required"}},
	{Name: "device_type", Rules: "required", Messages: map[string]string{"required": "Device type is required"}},
	{Name: "device_model", Rules: "required", Messages: map[string]string{"required": "Device model is required"}},
	{Name: "issue_description", Rules: "required", Messages: map[string]string{"required": "Issue description is required"}},
	{
		Name:  "status",
		Rules: "required,oneof=pending in_progress completed cancelled",
		Messages: map[string]string{
			"required": "Status is required",
			"oneof":    "Status must be pending, in_progress, completed or cancelled",
		},
	},
	{
		Name:  "priority",
		Rules: "required,oneof=low medium high",
		Messages: map[string]string{
			"required": "Priority is required",
			"oneof":    "Priority must be low, medium or high",
		},
	},
	{Name: "estimated_cost", Rules: "omitempty,gte=0", Messages: map[string]string{"gte": "Estimated cost cannot be negative"}},
	{Name: "actual_cost", Rules: "omitempty,gte=0", Messages: map[string]string{"gte": "Actual cost cannot be negative"}},
}

// Login is checked before signing in
var Login = Schema{
	{Name: "username", Rules: "required", Messages: map[string]string{"required": "Username is required"}},
	{Name: "password", Rules: "required", Messages: map[string]string{"required": "Password is required"}},
}

// Register is checked before creating an account
var Register = Schema{
	{Name: "username", Rules: "required", Messages: map[string]string{"required": "Username is required"}},
	{
		Name:  "email",
		Rules: "required,loose_email",
		Messages: map[string]string{
			"required":    "Email is required",
			"loose_email": "Invalid email address",
		},
	},
	{
		Name:  "password",
		Rules: "required,min=6",
		Messages: map[string]string{
			"required": "Password is required",
			"min":      "Password must be at least 6 characters",
		},
	},
	{
		Name:    "confirm_password",
		Rules:   "required,eqfield",
		EqualTo: "password",
		Messages: map[string]string{
			"required": "Please confirm your password",
			"eqfield":  "Passwords do not match",
		},
	},
}

// LoginValues builds the values checked by Login
func LoginValues(username, password string) Values {
	return Values{"username": username, "password": password}
}

// RegisterValues builds the values checked by Register
func RegisterValues(username, email, password, confirm string) Values {
	return Values{
		"username":         username,
		"email":            email,
		"password":         password,
		"confirm_password": confirm,
	}
}

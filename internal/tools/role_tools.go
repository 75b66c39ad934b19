package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/midorin-Linux/NekoAI/internal/discord"
)

func registerRoleTools(r *Registry, g *guildTools) {
	roleIDProp := map[string]any{
		"type":        "string",
		"description": "Role id.",
	}
	reasonProp := map[string]any{
		"type":        "string",
		"description": "Audit log reason.",
	}
	colorProp := map[string]any{
		"type":        "string",
		"description": "Role color hex (e.g. #ff0000).",
	}
	permissionsProp := map[string]any{
		"type":        "string",
		"description": "Permissions bitset in decimal.",
	}
	hoistProp := map[string]any{
		"type":        "boolean",
		"description": "Display role separately in the member list.",
	}
	mentionableProp := map[string]any{
		"type":        "boolean",
		"description": "Allow role mentions.",
	}

	r.Register(&Tool{
		Name:        "create_role",
		Description: "Create a role in the guild.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"name": map[string]any{
					"type":        "string",
					"description": "Role name.",
				},
				"permissions": permissionsProp,
				"color":       colorProp,
				"hoist":       hoistProp,
				"mentionable": mentionableProp,
				"reason":      reasonProp,
			},
			"required": []string{"name"},
		},
		Handler: g.handleCreateRole,
	})

	r.Register(&Tool{
		Name:        "delete_role",
		Description: "Delete a role from the guild.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"role_id":  roleIDProp,
				"reason":   reasonProp,
			},
			"required": []string{"role_id"},
		},
		Handler: g.handleDeleteRole,
	})

	r.Register(&Tool{
		Name:        "modify_role",
		Description: "Modify a role's name, permissions, color, hoist, or mentionable flags.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"role_id":  roleIDProp,
				"name": map[string]any{
					"type":        "string",
					"description": "Role name.",
				},
				"permissions": permissionsProp,
				"color":       colorProp,
				"hoist":       hoistProp,
				"mentionable": mentionableProp,
				"reason":      reasonProp,
			},
			"required": []string{"role_id"},
		},
		Handler: g.handleModifyRole,
	})

	r.Register(&Tool{
		Name:        "add_role_to_member",
		Description: "Add a role to a member.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"user_id": map[string]any{
					"type":        "string",
					"description": "User id.",
				},
				"role_id": roleIDProp,
				"reason":  reasonProp,
			},
			"required": []string{"user_id", "role_id"},
		},
		Handler: g.handleAddRoleToMember,
	})

	r.Register(&Tool{
		Name:        "remove_role_from_member",
		Description: "Remove a role from a member.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"user_id": map[string]any{
					"type":        "string",
					"description": "User id.",
				},
				"role_id": roleIDProp,
				"reason":  reasonProp,
			},
			"required": []string{"user_id", "role_id"},
		},
		Handler: g.handleRemoveRoleFromMember,
	})
}

// parseColor converts a hex color like "#ff0000" to Discord's integer
// form.
func parseColor(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	n, err := strconv.ParseInt(s, 16, 32)
	if err != nil || n < 0 || n > 0xFFFFFF {
		return 0, fmt.Errorf("invalid color %q", s)
	}
	return int(n), nil
}

func (g *guildTools) handleCreateRole(ctx context.Context, args map[string]any) (string, error) {
	guildID, err := g.guildID(args)
	if err != nil {
		return "", err
	}
	name := stringArg(args, "name")
	if name == "" {
		return "", fmt.Errorf("name is required")
	}

	params := discord.CreateRoleParams{
		Name:        name,
		Permissions: snowflakeArg(args, "permissions"),
		Hoist:       boolArg(args, "hoist"),
		Mentionable: boolArg(args, "mentionable"),
	}
	if c := stringArg(args, "color"); c != "" {
		color, err := parseColor(c)
		if err != nil {
			return "", err
		}
		params.Color = color
	}

	role, err := g.client.CreateRole(ctx, guildID, params, stringArg(args, "reason"))
	if err != nil {
		return "", fmt.Errorf("failed to create role: %w", err)
	}
	return fmt.Sprintf("Created role %s (%s)", role.Name, role.ID), nil
}

func (g *guildTools) handleDeleteRole(ctx context.Context, args map[string]any) (string, error) {
	guildID, err := g.guildID(args)
	if err != nil {
		return "", err
	}
	roleID := snowflakeArg(args, "role_id")
	if roleID == "" {
		return "", fmt.Errorf("role_id is required")
	}

	if err := g.client.DeleteRole(ctx, guildID, roleID, stringArg(args, "reason")); err != nil {
		return "", fmt.Errorf("failed to delete role: %w", err)
	}
	return fmt.Sprintf("Deleted role %s", roleID), nil
}

func (g *guildTools) handleModifyRole(ctx context.Context, args map[string]any) (string, error) {
	guildID, err := g.guildID(args)
	if err != nil {
		return "", err
	}
	roleID := snowflakeArg(args, "role_id")
	if roleID == "" {
		return "", fmt.Errorf("role_id is required")
	}

	fields := map[string]any{}
	if name := stringArg(args, "name"); name != "" {
		fields["name"] = name
	}
	if perms := snowflakeArg(args, "permissions"); perms != "" {
		fields["permissions"] = perms
	}
	if c := stringArg(args, "color"); c != "" {
		color, err := parseColor(c)
		if err != nil {
			return "", err
		}
		fields["color"] = color
	}
	if v, ok := args["hoist"].(bool); ok {
		fields["hoist"] = v
	}
	if v, ok := args["mentionable"].(bool); ok {
		fields["mentionable"] = v
	}
	if len(fields) == 0 {
		return "", fmt.Errorf("no role fields provided to modify")
	}

	role, err := g.client.ModifyRole(ctx, guildID, roleID, fields, stringArg(args, "reason"))
	if err != nil {
		return "", fmt.Errorf("failed to modify role: %w", err)
	}
	return fmt.Sprintf("Updated role %s (%s)", role.Name, role.ID), nil
}

func (g *guildTools) handleAddRoleToMember(ctx context.Context, args map[string]any) (string, error) {
	guildID, userID, err := g.memberArgs(args)
	if err != nil {
		return "", err
	}
	roleID := snowflakeArg(args, "role_id")
	if roleID == "" {
		return "", fmt.Errorf("role_id is required")
	}

	if err := g.client.AddMemberRole(ctx, guildID, userID, roleID, stringArg(args, "reason")); err != nil {
		return "", fmt.Errorf("failed to add role to member: %w", err)
	}
	return fmt.Sprintf("Added role %s to member %s", roleID, userID), nil
}

func (g *guildTools) handleRemoveRoleFromMember(ctx context.Context, args map[string]any) (string, error) {
	guildID, userID, err := g.memberArgs(args)
	if err != nil {
		return "", err
	}
	roleID := snowflakeArg(args, "role_id")
	if roleID == "" {
		return "", fmt.Errorf("role_id is required")
	}

	if err := g.client.RemoveMemberRole(ctx, guildID, userID, roleID, stringArg(args, "reason")); err != nil {
		return "", fmt.Errorf("failed to remove role from member: %w", err)
	}
	return fmt.Sprintf("Removed role %s from member %s", roleID, userID), nil
}
